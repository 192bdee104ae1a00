package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// POST /v1/model/train — synchronous retrain; the customer base is
// operator-scale so this stays well inside a request timeout.
func trainHandler(pipe *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, err := pipe.Train(c.Request().Context())
		if err != nil {
			switch {
			case errors.Is(err, churn.ErrNoTrainingData),
				errors.Is(err, churn.ErrNoPositiveExamples),
				errors.Is(err, churn.ErrNoNegativeExamples):
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			default:
				log.Errorf("training failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "training failed"})
			}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"trained": true,
			"metrics": m,
		})
	}
}

// GET /v1/model/importances?top_n=
func importancesHandler(pipe *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		topN := 0 // all
		if v := c.QueryParam("top_n"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid top_n"})
			}
			topN = n
		}

		imps, err := pipe.Explain(topN)
		if err != nil {
			if errors.Is(err, churn.ErrModelNotTrained) {
				return c.JSON(http.StatusConflict, map[string]string{"error": "model not trained"})
			}
			log.Errorf("importances failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{"importances": imps})
	}
}
