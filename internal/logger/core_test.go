package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDBCoreTeesEntries(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	writer := &DBLogWriter{logChan: make(chan LogEntry, 10), appId: "chainwatch"}

	log := zap.New(NewDBCore(observed, writer)).With(zap.String("dashboardId", "dash-1"))
	log.Warn("Transform failed", zap.String("widgetId", "w-1"), zap.Int("rows", 3))

	require.Len(t, writer.logChan, 1)
	entry := <-writer.logChan
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "Transform failed", entry.Message)
	assert.Equal(t, "dash-1", entry.DashboardID)
	assert.Equal(t, "w-1", entry.WidgetID)

	// the wrapped core still receives the entry
	assert.Equal(t, 1, logs.Len())

	record := writer.toRecord(entry)
	assert.Equal(t, "chainwatch", record.AppId)
	assert.Equal(t, 30, record.LogLevelId)
	assert.Equal(t, "warn", record.Level)
}

func TestDBCoreDropsWhenFull(t *testing.T) {
	observed, _ := observer.New(zapcore.InfoLevel)
	writer := &DBLogWriter{logChan: make(chan LogEntry, 1)}
	log := zap.New(NewDBCore(observed, writer))

	log.Info("first")
	log.Info("second")
	log.Debug("below level")

	assert.Len(t, writer.logChan, 1)
	assert.Equal(t, "first", (<-writer.logChan).Message)
}
