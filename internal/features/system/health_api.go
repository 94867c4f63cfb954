package system

import (
	"time"

	"go-chainwatch/internal/common/api"
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/connectors"
	"go-chainwatch/internal/features/binder"
	"go-chainwatch/internal/features/view"

	"github.com/gofiber/fiber/v2"
)

type HealthStatus struct {
	Status         string `json:"status"`
	Environment    string `json:"environment"`
	StorageDriver  string `json:"storageDriver"`
	OpenViews      int    `json:"openViews"`
	ScheduledJobs  int    `json:"scheduledJobs"`
	SQLConnections int    `json:"sqlConnections"`
	Uptime         string `json:"uptime"`
}

type HealthApi struct {
	Config    *config.Config
	Views     view.ViewService
	Scheduler *binder.Scheduler
	Pool      *connectors.Pool
	startedAt time.Time
}

func NewHealthApi(cfg *config.Config, views view.ViewService, scheduler *binder.Scheduler, pool *connectors.Pool) api.Route {
	return &HealthApi{
		Config:    cfg,
		Views:     views,
		Scheduler: scheduler,
		Pool:      pool,
		startedAt: time.Now(),
	}
}

// Setup registers health check routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.Liveness)
	app.Get("/api/health", h.HealthCheck)
}

// Liveness godoc
// @Summary      Liveness probe
// @Description  Check if the server is up
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Router       /health [get]
func (h *HealthApi) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Report storage, open views and background jobs
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthStatus
// @Router       /api/health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthStatus{
		Status:         "ok",
		Environment:    h.Config.Environment,
		StorageDriver:  h.Config.StorageDriver,
		OpenViews:      h.Views.Len(),
		ScheduledJobs:  h.Scheduler.Len(),
		SQLConnections: h.Pool.Len(),
		Uptime:         time.Since(h.startedAt).Round(time.Second).String(),
	})
}
