package middleware

import (
	"net/http"
	"strings"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// UserIDFromCtx extracts the authenticated user_id set by APIKeyMiddleware.
func UserIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	id, ok := v.(int64)
	return id, ok
}

// RoleFromCtx extracts the authenticated user's role.
func RoleFromCtx(c echo.Context) (model.UserRole, bool) {
	v := c.Get("user_role")
	r, ok := v.(model.UserRole)
	return r, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header.
// On success it stores user_id and user_role in context; suspended accounts
// are rejected.
func APIKeyMiddleware(users repository.UsersRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			u, err := users.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if u == nil || u.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("user_id", u.ID)
			c.Set("user_role", u.Role)
			return next(c)
		}
	}
}

// RequireRole gates a route to one role. Authentication must already have
// run.
func RequireRole(role model.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r, ok := RoleFromCtx(c)
			if !ok || r != role {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
