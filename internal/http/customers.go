package http

import (
	"encoding/csv"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// percent renders a probability as 0-100 with two decimals, matching what
// operators see in the UI.
func percent(p float64) float64 {
	return math.Round(p*10000) / 100
}

func scoreResponse(s pipeline.Score) map[string]any {
	return map[string]any{
		"customer_id": s.CustomerID,
		"customer":    s.Customer,
		"probability": percent(s.Probability),
		"tier":        s.Tier.String(),
	}
}

func scoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrCustomerNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "customer not found"})
	case errors.Is(err, churn.ErrModelNotTrained):
		return c.JSON(http.StatusConflict, map[string]string{"error": "model not trained"})
	default:
		log.Errorf("scoring failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
	}
}

func customerID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// GET /v1/customers/:id/churn — score without persisting.
func churnHandler(pipe *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := customerID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		}
		s, err := pipe.Predict(c.Request().Context(), id)
		if err != nil {
			return scoreError(c, err)
		}
		return c.JSON(http.StatusOK, scoreResponse(s))
	}
}

// POST /v1/customers/:id/score — score and persist the pair.
func scoreCustomerHandler(pipe *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := customerID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		}
		s, err := pipe.ScoreCustomer(c.Request().Context(), id)
		if err != nil {
			return scoreError(c, err)
		}
		resp := scoreResponse(s)
		resp["persisted"] = true
		return c.JSON(http.StatusOK, resp)
	}
}

// POST /v1/customers/import — multipart CSV upload.
func importCustomersHandler(pipe *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing file field"})
		}
		f, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1 // ragged rows are a per-row error, not a parse failure
		records, err := r.ReadAll()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid csv"})
		}
		if len(records) == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "empty file"})
		}

		res, err := pipe.ImportRows(c.Request().Context(), records[0], records[1:])
		if err != nil {
			var mc *pipeline.MissingColumnsError
			if errors.As(err, &mc) {
				return c.JSON(http.StatusBadRequest, map[string]any{
					"error":           "missing required columns",
					"missing_columns": mc.Columns,
				})
			}
			log.Errorf("import failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "import failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"created":  res.Created,
			"errors":   res.Errors,
			"warnings": res.Warnings,
		})
	}
}
