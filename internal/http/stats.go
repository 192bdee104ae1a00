package http

import (
	"net/http"

	"github.com/churnpredict/churnd/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// GET /v1/stats — the dashboard aggregate.
func statsHandler(customers repository.CustomersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tc, err := customers.Stats(c.Request().Context())
		if err != nil {
			log.Errorf("stats query failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"total":    tc.Total,
			"active":   tc.Active,
			"inactive": tc.Inactive,
			"tiers": map[string]int64{
				"low":    tc.Low,
				"medium": tc.Medium,
				"high":   tc.High,
			},
			"avg_probability": percent(tc.AvgProbability),
		})
	}
}
