package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/catalog/internal/database"
	"github.com/keyxmakerx/catalog/internal/middleware"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/plugins/products"
)

// RegisterRoutes sets up all application routes. It builds the media and
// product plugins from the shared dependencies and delegates to each
// plugin's route registration function.
//
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() error {
	e := a.Echo

	layout, err := media.NewLayout(a.Config.Upload.Root)
	if err != nil {
		return fmt.Errorf("preparing upload root: %w", err)
	}

	// --- Plugin wiring ---
	mediaRepo := media.NewMediaRepository(a.DB)
	receiver := media.NewReceiver(layout, a.Config.Upload)
	cleaner := media.NewCleaner(layout)
	scheduler := media.NewScheduler(a.Jobs.Enqueuer)

	mediaService := media.NewMediaService(mediaRepo, cleaner, scheduler)
	productRepo := products.NewProductRepository(a.DB, mediaRepo)
	productService := products.NewProductService(productRepo, mediaRepo, receiver, cleaner, scheduler)

	// --- Operational endpoints ---
	e.GET("/healthz", a.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// --- API ---
	api := e.Group("/api")

	// Endpoints that accept files are capped in size and rate limited per IP.
	uploadMW := []echo.MiddlewareFunc{
		middleware.RateLimit(a.Config.Upload.RateLimitPerMinute, time.Minute),
		echomw.BodyLimit(strconv.FormatInt(a.Config.Upload.MaxRequestSize, 10) + "B"),
	}

	products.RegisterRoutes(api, products.NewHandler(productService), uploadMW...)
	media.RegisterRoutes(e, api, media.NewHandler(mediaService, layout))

	if a.Jobs.DeadJobs != nil {
		jobs := &jobsHandler{dead: a.Jobs.DeadJobs}
		api.GET("/jobs/dead", jobs.ListDead)
		api.POST("/jobs/dead/:taskID/retry", jobs.RetryDead)
	}

	return nil
}

// health reports database and Redis connectivity (GET /healthz). Any
// failing dependency turns the response into 503 "degraded".
func (a *App) health(c echo.Context) error {
	var rc redis.UniversalClient
	if a.Redis != nil {
		rc = a.Redis
	}

	checks, healthy := database.Health(c.Request().Context(), a.DB, rc)
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
