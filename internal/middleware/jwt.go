package middleware // reusable HTTP middleware for the API

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-planner/internal/utils"
)

// UserResolver reports whether a user id still belongs to an account.
type UserResolver interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// checks that its subject is an existing user and stores the id in the
// context under "user_id".  Handlers read it with CallerID.
func JWTAuth(secret string, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// the account may have been deleted after the token was issued
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			ok, err := users.Exists(ctx, claims.Subject)
			if err != nil {
				slog.Error("resolve token subject", "err", err, "request_id", requestID(c))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user no longer exists"})
			}

			c.Set(userIDKey, claims.Subject)
			return next(c)
		}
	}
}
