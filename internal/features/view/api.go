package view

import (
	"go-chainwatch/internal/common/api"
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type ViewApi struct {
	ViewController   *ViewController
	SocketController *SocketController
	Config           *config.Config
}

func NewViewApi(viewController *ViewController, socketController *SocketController, cfg *config.Config) api.Route {
	return &ViewApi{
		ViewController:   viewController,
		SocketController: socketController,
		Config:           cfg,
	}
}

func (api *ViewApi) Setup(app *fiber.App) {
	group := app.Group("/api/views", middleware.AuthMiddleware(api.Config))

	group.Get("/", api.ViewController.ListViews)
	group.Post("/", api.ViewController.OpenView)

	group.Get("/:id", api.ViewController.GetView)
	group.Delete("/:id", api.ViewController.CloseView)
	group.Post("/:id/refresh", api.ViewController.RefreshView)
	group.Get("/:id/export", api.ViewController.ExportView)
	group.Post("/:id/click", api.ViewController.Click)
	group.Put("/:id/variables", api.ViewController.SetVariable)

	group.Get("/:id/widgets/:widgetId", api.ViewController.GetWidget)
	group.Post("/:id/widgets/:widgetId/refresh", api.ViewController.RefreshWidget)
	group.Get("/:id/widgets/:widgetId/export", api.ViewController.ExportWidget)

	group.Get("/:id/filters", api.ViewController.ListFilters)
	group.Post("/:id/filters", api.ViewController.AddFilter)
	group.Delete("/:id/filters", api.ViewController.ClearFilters)
	group.Put("/:id/filters/:filterId", api.ViewController.UpdateFilter)
	group.Delete("/:id/filters/:filterId", api.ViewController.RemoveFilter)

	group.Get("/:id/ws", api.SocketController.RequireUpgrade, websocket.New(api.SocketController.HandleSocket))
}
