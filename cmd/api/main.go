package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-chainwatch/internal/common/api"
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/connectors"
	"go-chainwatch/internal/database"
	"go-chainwatch/internal/features/binder"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/datasource"
	"go-chainwatch/internal/features/renderer"
	"go-chainwatch/internal/features/report"
	"go-chainwatch/internal/features/system"
	"go-chainwatch/internal/features/view"
	"go-chainwatch/internal/logger"
	"go-chainwatch/internal/middleware"

	_ "go-chainwatch/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route in the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app
// exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// ManageRuntime loads the dashboard collection before serving and tears
// down open views, refresh jobs and SQL connections on shutdown.
func ManageRuntime(
	lc fx.Lifecycle,
	dashboards dashboard.DashboardService,
	scheduler *binder.Scheduler,
	views view.ViewService,
	pool *connectors.Pool,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := dashboards.Hydrate(ctx); err != nil {
				return err
			}
			logger.Info("Dashboards loaded", zap.Int("count", len(dashboards.ListDashboards())))
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			views.CloseAll()
			scheduler.Stop()
			return pool.Close(ctx)
		},
	})
}

// @title           Chainwatch API
// @version         1.0
// @description     Dashboard layout and data binding service for the Web3 security console.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Storage and data access
			dashboard.NewDashboardRepository,
			connectors.NewPool,

			// Services
			dashboard.NewDashboardService,
			datasource.NewDataSourceService,
			binder.NewScheduler,
			binder.NewFactory,
			renderer.NewDispatcher,
			report.NewReportService,
			view.NewViewService,

			// Controllers
			dashboard.NewDashboardController,
			view.NewViewController,
			view.NewSocketController,

			// API Routes
			AsRoute(dashboard.NewDashboardApi),
			AsRoute(view.NewViewApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			ManageRuntime,
			StartServer,
		),
	)

	app.Run()
}
