package logger

import (
	"context"
	"fmt"
	"time"

	common_models "go-chainwatch/internal/common/models"
	"go-chainwatch/internal/config"
	"go-chainwatch/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to the writer
type LogEntry struct {
	Level       zapcore.Level
	Message     string
	Caller      string
	DashboardID string
	WidgetID    string
	IpAddress   string
}

// DBLogWriter inserts log entries asynchronously.
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appId      string
}

func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		collection: mongodb.DB.Collection("logs"),
		logChan:    make(chan LogEntry, 1000),
		appId:      cfg.AppId,
	}

	go writer.processLogs()

	return writer
}

// AddLog never blocks; entries are dropped when the buffer is full.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Insert errors are ignored to keep the service running
		_, _ = w.collection.InsertOne(ctx, w.toRecord(entry))
		cancel()
	}
}

func (w *DBLogWriter) toRecord(entry LogEntry) common_models.Log {
	return common_models.Log{
		AppId:        w.appId,
		Message:      entry.Message,
		Level:        entry.Level.String(),
		LogLevelId:   mapLevelToInt(entry.Level),
		Caller:       entry.Caller,
		DashboardID:  entry.DashboardID,
		WidgetID:     entry.WidgetID,
		IpAddress:    entry.IpAddress,
		CreatedOnUtc: time.Now().UTC(),
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
