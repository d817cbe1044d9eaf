package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/orderdesk/internal/model"
	echo "github.com/labstack/echo/v4"
)

const (
	ctxUserID  = "user_id"
	ctxUserRPS = "user_rps"
)

type UserLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
}

// UserIDFromCtx extracts the authenticated user id set by APIKeyMiddleware.
func UserIDFromCtx(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxUserID).(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header and
// rejects users that are not active.
func APIKeyMiddleware(users UserLookup) echo.MiddlewareFunc {
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
			c.Set(ctxUserID, u.ID)
			if u.RPS != nil {
				c.Set(ctxUserRPS, *u.RPS)
			}
			return next(c)
		}
	}
}
