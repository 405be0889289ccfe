package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures the global slog logger and returns the level
// handle so it can be changed at runtime.
//
// Format "text" uses a tint console handler; anything else is JSON. When
// File is set, output is duplicated to a lumberjack-rotated file.
func SetupLogging(cfg LoggingConfig) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	slog.SetDefault(slog.New(newHandler(cfg, level, os.Stdout)))
	return level
}

func newHandler(cfg LoggingConfig, level *slog.LevelVar, stdout io.Writer) slog.Handler {
	w := stdout
	if cfg.File != "" {
		w = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	if strings.ToLower(cfg.Format) == "text" {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    cfg.File != "",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a level name to slog.Level; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
