package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-planner/internal/model"
	"github.com/iliyamo/wedding-planner/internal/queue"
	"github.com/iliyamo/wedding-planner/internal/repository"
)

// RequirementHandler serves /api/requirements.
type RequirementHandler struct {
	Requirements *repository.RequirementRepo
	Events       EventPublisher
}

func NewRequirementHandler(reqs *repository.RequirementRepo, events EventPublisher) *RequirementHandler {
	if reqs == nil {
		panic("nil repository passed to NewRequirementHandler")
	}
	return &RequirementHandler{Requirements: reqs, Events: events}
}

func (h *RequirementHandler) List(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		list, err := h.Requirements.List(ctx, uid)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, list)
	})
}

// ListByStatus lists requirements with one status, most urgent first.
func (h *RequirementHandler) ListByStatus(c echo.Context) error {
	status := model.RequirementStatus(c.Param("status"))
	if !status.Valid() {
		return respondError(c, "requirement", &repository.ValidationError{Field: "status", Message: "must be one of pending, done"})
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		list, err := h.Requirements.ListByStatus(ctx, uid, status)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, list)
	})
}

func (h *RequirementHandler) Get(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		q, err := h.Requirements.Get(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, q)
	})
}

func (h *RequirementHandler) Create(c echo.Context) error {
	var in repository.RequirementInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "requirement", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		q, err := h.Requirements.Create(ctx, uid, in)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusCreated, q)
	})
}

func (h *RequirementHandler) Update(c echo.Context) error {
	var in repository.RequirementInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "requirement", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		q, err := h.Requirements.Update(ctx, uid, c.Param("id"), in)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, q)
	})
}

func (h *RequirementHandler) Delete(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		if err := h.Requirements.Delete(ctx, uid, c.Param("id")); err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "requirement deleted"})
	})
}

// ToggleStatus flips pending and done.
func (h *RequirementHandler) ToggleStatus(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		q, err := h.Requirements.ToggleStatus(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "requirement", err)
		}
		if q.Status == model.RequirementDone {
			ev := queue.NewActivityEvent(queue.RequirementCompleted, uid, q.ID)
			ev.Detail = q.Item
			emit(c, h.Events, ev)
		}
		return c.JSON(http.StatusOK, q)
	})
}

type bulkStatusReq struct {
	RequirementIDs []string                `json:"requirementIds"`
	Status         model.RequirementStatus `json:"status"`
}

// BulkStatus sets the status of every listed requirement the caller owns.
func (h *RequirementHandler) BulkStatus(c echo.Context) error {
	var req bulkStatusReq
	if err := bindStrict(c, &req); err != nil {
		return respondError(c, "requirement", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		n, err := h.Requirements.BulkSetStatus(ctx, uid, req.RequirementIDs, req.Status)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		if req.Status == model.RequirementDone && n > 0 {
			ev := queue.NewActivityEvent(queue.RequirementCompleted, uid, "")
			ev.Count = n
			emit(c, h.Events, ev)
		}
		return c.JSON(http.StatusOK, bulkResponse{
			Modified: n,
			Message:  fmt.Sprintf("%d requirements updated", n),
		})
	})
}

func (h *RequirementHandler) Stats(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		s, err := h.Requirements.Stats(ctx, uid)
		if err != nil {
			return respondError(c, "requirement", err)
		}
		return c.JSON(http.StatusOK, s)
	})
}
