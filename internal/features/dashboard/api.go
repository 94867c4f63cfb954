package dashboard

import (
	"go-chainwatch/internal/common/api"
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DashboardApi struct {
	DashboardController *DashboardController
	Config              *config.Config
}

func NewDashboardApi(dashboardController *DashboardController, cfg *config.Config) api.Route {
	return &DashboardApi{
		DashboardController: dashboardController,
		Config:              cfg,
	}
}

func (api *DashboardApi) Setup(app *fiber.App) {
	group := app.Group("/api/dashboards", middleware.AuthMiddleware(api.Config))

	group.Get("/", api.DashboardController.ListDashboards)
	group.Post("/", api.DashboardController.CreateDashboard)
	group.Get("/primary", api.DashboardController.GetPrimaryDashboard)
	group.Post("/import", api.DashboardController.ImportDashboard)

	group.Get("/:id", api.DashboardController.GetDashboard)
	group.Put("/:id", api.DashboardController.UpdateDashboard)
	group.Delete("/:id", api.DashboardController.DeleteDashboard)
	group.Post("/:id/set-primary", api.DashboardController.SetPrimaryDashboard)
	group.Post("/:id/duplicate", api.DashboardController.DuplicateDashboard)
	group.Get("/:id/export", api.DashboardController.ExportDashboard)

	group.Post("/:id/widgets", api.DashboardController.AddWidget)
	group.Put("/:id/widgets/:widgetId", api.DashboardController.UpdateWidget)
	group.Delete("/:id/widgets/:widgetId", api.DashboardController.RemoveWidget)
	group.Put("/:id/layout", api.DashboardController.UpdateLayout)
}
