// Package feature projects customer records into the fixed-width vectors the
// churn classifier consumes. One schema object is shared by training and
// inference so column order and categorical vocabulary can never diverge
// between the two.
package feature

import (
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/risk"
)

// Column names, in canonical order. The risk tier is one-hot encoded; status
// is deliberately not a column because it is the label source.
const (
	ColTierLow    = "tier_low"
	ColTierMedium = "tier_medium"
	ColTierHigh   = "tier_high"
	ColHasPhone   = "has_phone"
)

// Schema is an ordered list of feature columns. It is persisted inside the
// model artifact, so a loaded model always rebuilds vectors with the exact
// columns it was trained on.
type Schema struct {
	columns []string
}

// Default returns the schema current training runs use.
func Default() Schema {
	return Schema{columns: []string{ColTierLow, ColTierMedium, ColTierHigh, ColHasPhone}}
}

// FromColumns rebuilds a schema from the column list stored in an artifact.
func FromColumns(cols []string) Schema {
	c := make([]string, len(cols))
	copy(c, cols)
	return Schema{columns: c}
}

// Columns returns the ordered column names.
func (s Schema) Columns() []string {
	c := make([]string, len(s.columns))
	copy(c, s.columns)
	return c
}

func (s Schema) Width() int { return len(s.columns) }

// Build encodes one customer. Columns the schema knows but this build does
// not (or vice versa) encode as zero; Build never fails on unseen values.
func (s Schema) Build(c model.Customer) []float64 {
	x := make([]float64, len(s.columns))
	for i, col := range s.columns {
		x[i] = encode(col, c)
	}
	return x
}

// BuildBatch encodes a batch of customers into a row-per-customer table.
func (s Schema) BuildBatch(cs []model.Customer) [][]float64 {
	rows := make([][]float64, len(cs))
	for i, c := range cs {
		rows[i] = s.Build(c)
	}
	return rows
}

// Label returns the training target: 1 for churned, 0 for retained.
func Label(c model.Customer) float64 {
	if c.Churned() {
		return 1
	}
	return 0
}

// Labels builds the target column for a batch.
func Labels(cs []model.Customer) []float64 {
	ys := make([]float64, len(cs))
	for i, c := range cs {
		ys[i] = Label(c)
	}
	return ys
}

func encode(col string, c model.Customer) float64 {
	switch col {
	case ColTierLow:
		return oneHot(c.RiskTier == risk.TierLow)
	case ColTierMedium:
		return oneHot(c.RiskTier == risk.TierMedium)
	case ColTierHigh:
		return oneHot(c.RiskTier == risk.TierHigh)
	case ColHasPhone:
		return oneHot(c.HasPhone())
	default:
		// Column unknown to this version of the builder: all-zero, never an
		// error, so old artifacts keep scoring.
		return 0
	}
}

func oneHot(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
