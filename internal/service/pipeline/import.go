package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/risk"
	"go.uber.org/zap"
)

// Import columns follow the legacy CSV layout: Spanish headers, matched
// case-insensitively.
const (
	colName    = "nombre"
	colSurname = "apellido"
	colEmail   = "email"
	colPhone   = "telefono"
	colAddress = "direccion"
	colStatus  = "estado"
	colRisk    = "nivel_riesgo"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RowIssue pins a validation message to a spreadsheet row. Row numbers count
// the header as row 1, so the first data row is 2.
type RowIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (i RowIssue) String() string { return fmt.Sprintf("row %d: %s", i.Row, i.Message) }

type ImportResult struct {
	Created  int        `json:"created"`
	Errors   []RowIssue `json:"errors,omitempty"`
	Warnings []RowIssue `json:"warnings,omitempty"`
}

// MissingColumnsError rejects the whole file before any row is touched.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// ImportRows validates and inserts customer rows one at a time. Rows that
// fail validation are reported and skipped; rows already inserted stay
// inserted regardless of what later rows do.
func (p *Pipeline) ImportRows(ctx context.Context, header []string, rows [][]string) (ImportResult, error) {
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, required := range []string{colName, colSurname, colEmail} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return ImportResult{}, &MissingColumnsError{Columns: missing}
	}

	get := func(row []string, col string) string {
		idx, ok := cols[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	res := ImportResult{}
	for i, row := range rows {
		fileRow := i + 2

		fail := func(msg string) {
			res.Errors = append(res.Errors, RowIssue{Row: fileRow, Message: msg})
			metrics.ImportRowsTotal.WithLabelValues("rejected").Inc()
		}

		name := get(row, colName)
		surname := get(row, colSurname)
		email := get(row, colEmail)
		if name == "" || surname == "" || email == "" {
			fail("nombre, apellido and email are required")
			continue
		}
		if !emailRe.MatchString(email) {
			fail(fmt.Sprintf("invalid email %q", email))
			continue
		}

		existing, err := p.customers.GetByEmail(ctx, email)
		if err != nil {
			fail(fmt.Sprintf("lookup failed for %q", email))
			p.log.Error("import email lookup failed", zap.String("email", email), zap.Error(err))
			continue
		}
		if existing != nil {
			fail(fmt.Sprintf("duplicate email %q", email))
			continue
		}

		// Legacy exports carry free-form estado values; coerce to active
		// rather than reject, like the importer this replaces.
		status, ok := model.ParseCustomerStatus(get(row, colStatus))
		if !ok {
			res.Warnings = append(res.Warnings, RowIssue{
				Row:     fileRow,
				Message: fmt.Sprintf("unknown estado %q, defaulted to %s", get(row, colStatus), status),
			})
		}

		prob, tier := 0.0, risk.TierLow
		if rawRisk := get(row, colRisk); rawRisk != "" {
			enc := risk.Encode(rawRisk)
			prob, tier = enc.Probability, enc.Tier
			if !enc.Trusted {
				res.Warnings = append(res.Warnings, RowIssue{
					Row:     fileRow,
					Message: fmt.Sprintf("unrecognized nivel_riesgo %q, defaulted to %s", rawRisk, tier),
				})
			}
		}

		c := model.Customer{
			Name:             name,
			Surname:          surname,
			Email:            email,
			Phone:            get(row, colPhone),
			Address:          get(row, colAddress),
			Status:           status,
			ChurnProbability: prob,
			RiskTier:         tier,
		}
		if _, err := p.customers.Insert(ctx, c); err != nil {
			fail("insert failed")
			p.log.Error("import insert failed", zap.String("email", email), zap.Error(err))
			continue
		}

		res.Created++
		metrics.ImportRowsTotal.WithLabelValues("created").Inc()
	}

	p.log.Info("import finished",
		zap.Int("created", res.Created),
		zap.Int("rejected", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
	)

	return res, nil
}
