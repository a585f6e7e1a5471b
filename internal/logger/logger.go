package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config level name to a zap level. Unknown names mean info.
func ParseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// consoleSink receives log lines not sent to a file. Stdout carries command output.
var consoleSink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)

// New builds a console-encoded logger writing to logFile and/or stderr. With
// no file configured it always writes to stderr. A disabled logger is a no-op.
// The returned close function releases the log file.
func New(enabled bool, levelStr, logFile string, console bool) (*zap.Logger, func() error, error) {
	noop := func() error { return nil }
	if !enabled {
		return zap.NewNop(), noop, nil
	}

	var syncers []zapcore.WriteSyncer
	closeFn := noop
	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		syncers = append(syncers, zapcore.AddSync(f))
		closeFn = f.Close
	}
	if console || len(syncers) == 0 {
		syncers = append(syncers, consoleSink)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(syncers...),
		ParseLevel(levelStr),
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), closeFn, nil
}
