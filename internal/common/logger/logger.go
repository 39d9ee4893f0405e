package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one JSON object per entry with service, action and hostname.
type Logger struct {
	z *zap.Logger
}

func New(service string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.CallerKey = ""
	cfg.EncoderConfig.StacktraceKey = ""

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{z: z.With(zap.String("service", service), zap.String("hostname", hostname()))}
}

// NewNop discards everything; used by tests.
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

// FromZap wraps an existing zap logger, e.g. one built on zaptest/observer.
func FromZap(service string, z *zap.Logger) *Logger {
	return &Logger{z: z.With(zap.String("service", service))}
}

// Named tags entries with a component; the service field is inherited.
func (l *Logger) Named(component string) *Logger {
	if l == nil || l.z == nil {
		return l
	}
	return &Logger{z: l.z.With(zap.String("component", component))}
}

func (l *Logger) log(level zapcore.Level, action string, fields map[string]any, err error) {
	if l == nil || l.z == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.String("action", action))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	if ce := l.z.Check(level, action); ce != nil {
		ce.Write(zf...)
	}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.log(zapcore.InfoLevel, action, fields, nil)
}
func (l *Logger) Debug(action string, fields map[string]any) {
	l.log(zapcore.DebugLevel, action, fields, nil)
}
func (l *Logger) Warn(action string, err error, fields map[string]any) {
	l.log(zapcore.WarnLevel, action, fields, err)
}
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(zapcore.ErrorLevel, action, fields, err)
}

func (l *Logger) Sync() {
	if l != nil && l.z != nil {
		_ = l.z.Sync()
	}
}

func levelFromEnv() zapcore.Level {
	lvl := zapcore.InfoLevel
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		_ = lvl.Set(s)
	}
	return lvl
}

func hostname() string { h, _ := os.Hostname(); return h }
