package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string
	ServiceName string
	Development bool
}

// Logger wraps zap with the small surface the service uses
type Logger struct {
	zl *zap.Logger
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Safe to call once at process boot.
func Init(cfg *Config) error {
	var err error
	once.Do(func() {
		var zl *zap.Logger
		if cfg != nil && cfg.Development {
			zcfg := zap.NewDevelopmentConfig()
			zcfg.Level = parseLevel(cfg.Level)
			zl, err = zcfg.Build()
		} else {
			zcfg := zap.NewProductionConfig()
			if cfg != nil {
				zcfg.Level = parseLevel(cfg.Level)
			}
			zl, err = zcfg.Build()
		}
		if err != nil {
			return
		}
		if cfg != nil && cfg.ServiceName != "" {
			zl = zl.With(zap.String("service", cfg.ServiceName))
		}
		global = &Logger{zl: zl}
	})
	return err
}

// Get returns the global logger, falling back to a no-op logger when Init
// was never called (unit tests).
func Get() *Logger {
	if global == nil {
		return &Logger{zl: zap.NewNop()}
	}
	return global
}

// Sync flushes buffered log entries.
func Sync() {
	if global != nil {
		_ = global.zl.Sync()
	}
}

func parseLevel(level string) zap.AtomicLevel {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = zapcore.InfoLevel
	}
	return zap.NewAtomicLevelAt(l)
}

func (l *Logger) Debug(msg string) { l.zl.Debug(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn(msg) }
func (l *Logger) Error(msg string) { l.zl.Error(msg) }
func (l *Logger) Fatal(msg string) { l.zl.Fatal(msg) }

func (l *Logger) Infof(format string, args ...any)  { l.zl.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error(fmt.Sprintf(format, args...)) }

// With returns a logger with extra structured fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zl: l.zl.With(fields...)}
}
