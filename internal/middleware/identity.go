package middleware

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// CallerID returns the authenticated user id stored by JWTAuth, or "" on
// unauthenticated routes.
func CallerID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
