package logger

import (
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the application logger. When Mongo storage is enabled,
// entries are also written to the logs collection.
func NewLogger(cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Caller function names are stored with DB log entries
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	if !mongodb.Enabled() {
		return baseLogger.WithOptions(zap.AddCaller()), nil
	}

	dbWriter := NewDBLogWriter(mongodb, cfg)
	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	return zap.New(finalCore, zap.AddCaller()), nil
}
