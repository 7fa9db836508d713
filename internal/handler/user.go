package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/middleware"
	"github.com/iliyamo/wedding-planner/internal/model"
	"github.com/iliyamo/wedding-planner/internal/queue"
	"github.com/iliyamo/wedding-planner/internal/repository"
	"github.com/iliyamo/wedding-planner/internal/service"
	"github.com/iliyamo/wedding-planner/internal/upload"
	"github.com/iliyamo/wedding-planner/internal/utils"
)

// MaxAudioBytes caps uploads to the transcribe endpoint.
const MaxAudioBytes = 25 << 20

// UserHandler bundles dependencies for account endpoints under /api/users.
type UserHandler struct {
	Cfg          config.Config
	Users        *repository.UserRepo
	Tokens       *repository.TokenRepo
	Guests       *repository.GuestRepo
	Expenses     *repository.ExpenseRepo
	Requirements *repository.RequirementRepo
	Store        *upload.Store
	STT          service.Transcriber
	Events       EventPublisher
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
	All          bool   `json:"all"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// issue creates an access token and a stored refresh token for u.
func (h *UserHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a user and returns tokens immediately.
func (h *UserHandler) Register(c echo.Context) error {
	var in repository.RegisterInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "user", err)
	}
	if err := in.Validate(); err != nil {
		return respondError(c, "user", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, in, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, "user", err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, "user", err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindStrict(c, &req); err != nil {
		return respondError(c, "user", err)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, "user", err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, "user", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (h *UserHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindStrict(c, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return respondError(c, "user", err)
	}
	// a concurrent refresh with the same token loses here
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, "user", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		return respondError(c, "user", err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, "user", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the given refresh token, or every refresh token of its
// owner when all is set.
func (h *UserHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := bindStrict(c, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return respondError(c, "user", err)
	}
	if req.All {
		err = h.Tokens.RevokeAllForUser(ctx, userID)
	} else {
		err = h.Tokens.RevokeByHash(ctx, hash)
	}
	if err != nil {
		return respondError(c, "user", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		u, err := h.Users.GetByID(ctx, uid)
		if err != nil {
			return respondError(c, "user", err)
		}
		return c.JSON(http.StatusOK, u)
	})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var p repository.ProfilePatch
	if err := bindStrict(c, &p); err != nil {
		return respondError(c, "user", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		u, err := h.Users.UpdateProfile(ctx, uid, p)
		if err != nil {
			return respondError(c, "user", err)
		}
		return c.JSON(http.StatusOK, u)
	})
}

// ChangePassword replaces the password and signs out every session.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var in repository.ChangePasswordInput
	if err := bindStrict(c, &in); err != nil {
		return respondError(c, "user", err)
	}
	return withCaller(c, func(ctx context.Context, uid string) error {
		if err := h.Users.ChangePassword(ctx, uid, in, h.Cfg.BcryptCost); err != nil {
			return respondError(c, "user", err)
		}
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return respondError(c, "user", err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
	})
}

// DeleteAccount removes the user with everything they own, including the
// files of their expense documents.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		files, err := h.Users.Delete(ctx, uid)
		if err != nil {
			return respondError(c, "user", err)
		}
		h.Store.Remove(files...)
		ev := queue.NewActivityEvent(queue.AccountDeleted, uid, uid)
		ev.Count = int64(len(files))
		emit(c, h.Events, ev)
		return c.JSON(http.StatusOK, echo.Map{"message": "account deleted"})
	})
}

type exportResp struct {
	ExportedAt   time.Time           `json:"exportedAt"`
	User         model.User          `json:"user"`
	Guests       []model.Guest       `json:"guests"`
	Expenses     []model.Expense     `json:"expenses"`
	Requirements []model.Requirement `json:"requirements"`
}

// ExportData returns everything the caller owns in one document.
func (h *UserHandler) ExportData(c echo.Context) error {
	return withCaller(c, func(ctx context.Context, uid string) error {
		out := exportResp{ExportedAt: time.Now().UTC()}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			out.User, err = h.Users.GetByID(gctx, uid)
			return err
		})
		g.Go(func() (err error) {
			out.Guests, err = h.Guests.List(gctx, uid)
			return err
		})
		g.Go(func() (err error) {
			out.Expenses, err = h.Expenses.List(gctx, uid)
			return err
		})
		g.Go(func() (err error) {
			out.Requirements, err = h.Requirements.List(gctx, uid)
			return err
		})
		if err := g.Wait(); err != nil {
			return respondError(c, "user", err)
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="wedding-data.json"`)
		return c.JSON(http.StatusOK, out)
	})
}

// Transcribe forwards the "audio" part to the speech-to-text service and
// returns the cleaned text.
func (h *UserHandler) Transcribe(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no audio file provided"})
	}
	if fh.Size > MaxAudioBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "audio file exceeds the 25 MB limit"})
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, "user", err)
	}
	defer f.Close()
	audio, err := io.ReadAll(io.LimitReader(f, MaxAudioBytes))
	if err != nil {
		return respondError(c, "user", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	text, err := h.STT.Transcribe(ctx, audio, fh.Header.Get(echo.HeaderContentType))
	if errors.Is(err, service.ErrTranscriberDisabled) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "speech-to-text is not configured"})
	}
	if err != nil {
		slog.Error("transcription failed", "err", err, "user_id", middleware.CallerID(c), "bytes", len(audio))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transcription failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"text": text})
}
