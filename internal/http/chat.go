package http

import (
	"net/http"
	"strings"

	"github.com/churnpredict/churnd/internal/service/chat"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type chatReq struct {
	Question string `json:"question"`
}

// POST /v1/chat — the rule-based assistant.
func chatHandler(svc *chat.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req chatReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
		}

		reply, err := svc.Answer(c.Request().Context(), req.Question)
		if err != nil {
			log.Errorf("chat failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "assistant unavailable"})
		}
		return c.JSON(http.StatusOK, reply)
	}
}
