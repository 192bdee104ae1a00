package http

import (
	"net/http"
	"strconv"

	"github.com/churnpredict/churnd/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// GET /v1/reports/predictions — prediction history from ClickHouse.
func listPredictionsHandler(chRepo repository.CHPredictionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var customerID int64
		if v := c.QueryParam("customer_id"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
			}
			customerID = n
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		rows, err := chRepo.List(c.Request().Context(), customerID, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
