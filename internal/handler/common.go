package handler // handler defines http handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-planner/internal/middleware"
	"github.com/iliyamo/wedding-planner/internal/queue"
	"github.com/iliyamo/wedding-planner/internal/repository"
	"github.com/iliyamo/wedding-planner/internal/upload"
)

// dbTimeout bounds the database work of one request.
const dbTimeout = 5 * time.Second

// EventPublisher sends activity events.  Failures never fail a request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent) error
}

// getUserID returns the caller id set by middleware.JWTAuth.
func getUserID(c echo.Context) (string, error) {
	id := middleware.CallerID(c)
	if id == "" {
		return "", errors.New("invalid user_id in context")
	}
	return id, nil
}

// withCaller resolves the caller and a bounded context, then runs fn.
func withCaller(c echo.Context, fn func(ctx context.Context, uid string) error) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	return fn(ctx, uid)
}

// bindStrict decodes a JSON body into dst, rejecting unknown fields and
// trailing data.  An empty body leaves dst untouched.
func bindStrict(c echo.Context, dst any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &repository.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return &repository.ValidationError{Field: "body", Message: "unexpected data after JSON object"}
	}
	return nil
}

// respondError maps repository and upload errors to HTTP responses.  what
// names the resource in not-found messages.  Anything unrecognised is
// logged and reported as a generic 500.
func respondError(c echo.Context, what string, err error) error {
	var (
		ve *repository.ValidationError
		re *upload.RejectedError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &re):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": re.Error()})
	case errors.Is(err, repository.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	case errors.Is(err, repository.ErrDocumentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, repository.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	slog.Error("request failed",
		"err", err,
		"route", c.Path(),
		"method", c.Request().Method,
		"user_id", middleware.CallerID(c),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// emit publishes ev without letting a broker problem reach the client.
// The request context is detached so a finished request does not cancel
// the publish.
func emit(c echo.Context, p EventPublisher, ev queue.ActivityEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(c.Request().Context()), ev); err != nil {
		slog.Warn("activity event dropped", "event", ev.Type, "user_id", ev.UserID, "err", err)
	}
}

// bulkResponse is the body of the bulk update endpoints.
type bulkResponse struct {
	Modified int64  `json:"modified"`
	Message  string `json:"message"`
}
