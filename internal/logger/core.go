package logger

import (
	"go.uber.org/zap/zapcore"
)

// DBCore tees every entry it writes to a DBLogWriter.
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
	fields map[string]string
}

func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps the DB tee on child loggers and remembers the identifying
// fields they were created with.
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	inherited := make(map[string]string, len(c.fields)+len(fields))
	for k, v := range c.fields {
		inherited[k] = v
	}
	collectTracked(inherited, fields)

	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
		fields: inherited,
	}
}

func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tracked := make(map[string]string, len(c.fields)+len(fields))
	for k, v := range c.fields {
		tracked[k] = v
	}
	collectTracked(tracked, fields)

	c.writer.AddLog(LogEntry{
		Level:       entry.Level,
		Message:     entry.Message,
		Caller:      entry.Caller.Function,
		DashboardID: tracked["dashboardId"],
		WidgetID:    tracked["widgetId"],
		IpAddress:   tracked["ip"],
	})

	return c.Core.Write(entry, fields)
}

func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func collectTracked(dst map[string]string, fields []zapcore.Field) {
	for _, f := range fields {
		switch f.Key {
		case "dashboardId", "widgetId", "ip":
			if f.Type == zapcore.StringType {
				dst[f.Key] = f.String
			}
		}
	}
}
