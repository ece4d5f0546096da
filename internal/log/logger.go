package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kk-code-lab/humpty/internal/config"
)

// NewLogger builds the process logger. Console output goes to stderr so it
// never interleaves with command summaries on stdout.
func NewLogger(service string, cfg config.LoggingConfig) (*zap.Logger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if strings.EqualFold(cfg.Type, "json") {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	sink := zapcore.Lock(os.Stderr)
	if strings.EqualFold(cfg.Output, "file") {
		target := cfg.Target
		if target == "" {
			target = os.TempDir()
		}
		dir := filepath.Join(target, fmt.Sprintf("humpty-%s", service))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log: create logging path: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.log", time.Now().Format("since-20060102")))
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log: create logging file: %w", err)
		}
		sink = zapcore.Lock(file)
	}

	core := zapcore.NewCore(encoder, sink, ParseLevel(cfg.Level))
	return zap.New(core).Named(service), nil
}

// ParseLevel maps a config level name to a zap level; unknown names mean warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
