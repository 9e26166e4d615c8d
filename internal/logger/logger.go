package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"notifyme/internal/config"
)

// New builds the application logger from configuration. Console output goes
// to stderr; file output, when configured, rotates via lumberjack.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	writers := []io.Writer{newConsoleWriter(cfg.LogFormat)}

	if cfg.LogFile != "" {
		fileWriter, err := newFileWriter(cfg)
		if err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, fileWriter)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(level)
	return logger, nil
}

func newConsoleWriter(format string) io.Writer {
	if strings.ToLower(format) == "json" {
		return os.Stderr
	}
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}

// newFileWriter creates a rotating file writer. File output is always JSON so
// that rotated logs stay machine-parseable.
func newFileWriter(cfg config.LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxLogSizeMB,
		MaxBackups: cfg.MaxLogBackups,
		LocalTime:  true,
	}, nil
}
