package main

import (
	"context"
	"encoding/json"
	"os"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/database"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Data path, assuming the seeder runs from the repository root.
const dashboardsPath = "cmd/seed/data/dashboards.json"

// Seed imports the demo dashboards into an empty collection and marks the
// first one primary.
func Seed(
	lc fx.Lifecycle,
	dashboards dashboard.DashboardService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx := context.Background()
				logger.Info("Starting dashboard seeding")

				if err := dashboards.Hydrate(ctx); err != nil {
					logger.Error("Failed to load dashboards", zap.Error(err))
					return
				}
				if existing := dashboards.ListDashboards(); len(existing) > 0 {
					logger.Info("Dashboards exist, skipping", zap.Int("count", len(existing)))
					return
				}

				b, err := os.ReadFile(dashboardsPath)
				if err != nil {
					logger.Error("Failed to read seed data", zap.String("path", dashboardsPath), zap.Error(err))
					return
				}
				var docs []json.RawMessage
				if err := json.Unmarshal(b, &docs); err != nil {
					logger.Error("Failed to parse seed data", zap.Error(err))
					return
				}

				for i, doc := range docs {
					d, err := dashboards.ImportDashboard(ctx, doc)
					if err != nil {
						logger.Error("Failed to import dashboard", zap.Int("index", i), zap.Error(err))
						continue
					}
					if i == 0 {
						if _, err := dashboards.SetPrimaryDashboard(ctx, d.ID); err != nil {
							logger.Error("Failed to set primary dashboard", zap.Error(err))
						}
					}
					logger.Info("Dashboard seeded", zap.String("title", d.Title), zap.Int("widgets", len(d.Widgets)))
				}

				logger.Info("Seeding completed")
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			dashboard.NewDashboardRepository,
			dashboard.NewDashboardService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
