package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/handler"
	"github.com/iliyamo/wedding-planner/internal/metrics"
	"github.com/iliyamo/wedding-planner/internal/middleware"
	"github.com/iliyamo/wedding-planner/internal/repository"
	"github.com/iliyamo/wedding-planner/internal/service"
	"github.com/iliyamo/wedding-planner/internal/upload"
)

// Deps are the long-lived objects the routes are built from.  Redis and
// Events may be nil; rate limiting and activity events are then off.
type Deps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	DB        *sql.DB
	Redis     *redis.Client
	Store     *upload.Store
	Metrics   *metrics.Metrics
	Events    handler.EventPublisher
	STT       service.Transcriber
	Logger    *slog.Logger
}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.STT == nil {
		d.STT = service.DisabledTranscriber{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.Recover())
	e.Use(d.Metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders: []string{echo.HeaderContentDisposition, "Retry-After"},
	}))

	RegisterRoutes(e, d)

	users := repository.NewUserRepo(d.DB)
	tokens := repository.NewTokenRepo(d.DB)
	guests := repository.NewGuestRepo(d.DB)
	expenses := repository.NewExpenseRepo(d.DB)
	reqs := repository.NewRequirementRepo(d.DB)

	auth := middleware.JWTAuth(d.Cfg.JWTSecret, users)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	RegisterUsers(e, &handler.UserHandler{
		Cfg:          d.Cfg,
		Users:        users,
		Tokens:       tokens,
		Guests:       guests,
		Expenses:     expenses,
		Requirements: reqs,
		Store:        d.Store,
		STT:          d.STT,
		Events:       d.Events,
	}, auth, limit)
	RegisterGuests(e, handler.NewGuestHandler(guests, d.Events), auth, limit)
	RegisterExpenses(e, &handler.ExpenseHandler{
		Expenses: expenses,
		Store:    d.Store,
		Policy:   upload.NewPolicy(d.Cfg.MaxUploadBytes()),
		Metrics:  d.Metrics,
		Events:   d.Events,
	}, expenseBodyLimit(d.Cfg), auth, limit)
	RegisterRequirements(e, handler.NewRequirementHandler(reqs, d.Events), auth, limit)

	return e
}

// RegisterRoutes registers the unauthenticated infrastructure endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
}

// expenseBodyLimit leaves room for a full set of documents plus form
// fields.
func expenseBodyLimit(cfg config.Config) string {
	return fmt.Sprintf("%dM", upload.DefaultMaxFiles*cfg.MaxUploadMB+1)
}
