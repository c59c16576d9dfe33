// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, queue handles,
// Echo instance) and wires the product and media plugins together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/middleware"
	"github.com/keyxmakerx/catalog/internal/queue"
	"github.com/keyxmakerx/catalog/internal/templates/pages"
)

// trustedProxies are the networks whose X-Forwarded-For headers are
// believed when resolving the client IP for logging and rate limiting.
var trustedProxies = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Docker default bridge
	"172.16.0.0/12",  // Docker bridge (alternate range)
	"192.168.0.0/16", // Common LAN
	"fd00::/8",       // IPv6 private
}

// Jobs bundles the derivative queue handles. Either may be nil, in which
// case uploads still succeed but stay unprocessed, and the dead-job
// endpoints are not registered.
type Jobs struct {
	Enqueuer queue.Enqueuer
	DeadJobs queue.DeadJobs
}

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis backs the health check. The queue keeps its own connections.
	Redis *redis.Client

	// Jobs are the derivative queue handles.
	Jobs Jobs

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client, jobs Jobs) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Resolve the client IP through trusted reverse proxies only, so
	// c.RealIP() cannot be spoofed by clients to dodge the upload rate limit.
	e.IPExtractor = echo.ExtractIPFromXFFHeader(trustOptions(trustedProxies)...)

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Jobs:   jobs,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// trustOptions converts CIDR strings into Echo trust options. Invalid
// entries are logged and skipped.
func trustOptions(cidrs []string) []echo.TrustOption {
	opts := make([]echo.TrustOption, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy range", slog.String("cidr", cidr))
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return opts
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Request counts and latency per route.
	a.Echo.Use(middleware.Metrics())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to HTTP responses: JSON for API requests, the HTML error page
// for everything else.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in errors: router 404/405, body limit 413.
		code = echoErr.Code
		message = defaultErrorMessage(code)
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if middleware.IsAPI(c) {
		_ = c.JSON(code, map[string]string{
			"error":   http.StatusText(code),
			"message": message,
		})
		return
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = middleware.Render(c, code, pages.ErrorPage(code, message))
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusNotFound:
		return "The resource you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestEntityTooLarge:
		return "The request is too large."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting catalog server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
