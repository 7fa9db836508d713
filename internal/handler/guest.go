package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-planner/internal/queue"
	"github.com/iliyamo/wedding-planner/internal/repository"
)

// GuestHandler serves /api/guests.
type GuestHandler struct {
	Guests *repository.GuestRepo
	Events EventPublisher
}

func NewGuestHandler(guests *repository.GuestRepo, events EventPublisher) *GuestHandler {
	if guests == nil {
		panic("nil repository passed to NewGuestHandler")
	}
	return &GuestHandler{Guests: guests, Events: events}
}

func (h *GuestHandler) List(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		guests, err := h.Guests.List(ctx, uid)
		if err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusOK, guests)
	})
}

func (h *GuestHandler) Get(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		g, err := h.Guests.Get(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusOK, g)
	})
}

func (h *GuestHandler) Create(c echo.Context) error {
	var in repository.GuestInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "guest", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		g, err := h.Guests.Create(ctx, uid, in)
		if err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusCreated, g)
	})
}

func (h *GuestHandler) Update(c echo.Context) error {
	var in repository.GuestInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "guest", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		g, err := h.Guests.Update(ctx, uid, c.Param("id"), in)
		if err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusOK, g)
	})
}

func (h *GuestHandler) Delete(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		if err := h.Guests.Delete(ctx, uid, c.Param("id")); err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "guest deleted"})
	})
}

// ToggleInvitation flips invitationSent on one guest.
func (h *GuestHandler) ToggleInvitation(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		g, err := h.Guests.ToggleInvitation(ctx, uid, c.Param("id"))
		if err != nil {
			return respondError(c, "guest", err)
		}
		ev := queue.NewActivityEvent(queue.GuestInvitationToggled, uid, g.ID)
		ev.Detail = fmt.Sprintf("invitationSent=%t", g.InvitationSent)
		emit(c, h.Events, ev)
		return c.JSON(http.StatusOK, g)
	})
}

type bulkInvitationReq struct {
	GuestIDs       []string `json:"guestIds"`
	InvitationSent *bool    `json:"invitationSent"`
}

// BulkInvitation sets invitationSent on every listed guest the caller owns.
func (h *GuestHandler) BulkInvitation(c echo.Context) error {
	var req bulkInvitationReq
	if err := bindStrict(c, &req); err != nil {
		return respondError(c, "guest", err)
	}
	if req.InvitationSent == nil {
		return respondError(c, "guest", &repository.ValidationError{Field: "invitationSent", Message: "is required"})
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		n, err := h.Guests.BulkSetInvitation(ctx, uid, req.GuestIDs, *req.InvitationSent)
		if err != nil {
			return respondError(c, "guest", err)
		}
		ev := queue.NewActivityEvent(queue.GuestInvitationsBulk, uid, "")
		ev.Count = n
		ev.Detail = fmt.Sprintf("invitationSent=%t", *req.InvitationSent)
		emit(c, h.Events, ev)
		return c.JSON(http.StatusOK, bulkResponse{
			Modified: n,
			Message:  fmt.Sprintf("%d guests updated", n),
		})
	})
}

func (h *GuestHandler) Stats(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		s, err := h.Guests.Stats(ctx, uid)
		if err != nil {
			return respondError(c, "guest", err)
		}
		return c.JSON(http.StatusOK, s)
	})
}
