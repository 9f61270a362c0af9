// Package logging provides structured logging for the journal server,
// built on log/slog with file rotation via lumberjack.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	consoleLogger    *slog.Logger
	loggerMu         sync.RWMutex

	currentFileCloser io.Closer
	currentLevel      = new(slog.LevelVar)
	initOnce          sync.Once
	initialized       bool
)

// Config controls where and how the journal server logs.
type Config struct {
	Level      string // debug, info, warn, error
	FilePath   string // "" disables file logging
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool
}

func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	return a
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init configures the global loggers. It is safe to call once; subsequent
// calls are no-ops (use SetLevel/SetOutput to reconfigure at runtime).
func Init(cfg Config) error {
	var initErr error
	initOnce.Do(func() {
		currentLevel.Set(levelFromString(cfg.Level))

		var fileWriter io.Writer = io.Discard
		if cfg.FilePath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
				initErr = fmt.Errorf("create log directory: %w", err)
				return
			}
			lj := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    firstNonZero(cfg.MaxSizeMB, 50),
				MaxBackups: firstNonZero(cfg.MaxBackups, 5),
				MaxAge:     firstNonZero(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
			}
			fileWriter = lj
			currentFileCloser = lj
		}

		jsonHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		var consoleWriter io.Writer = io.Discard
		if cfg.Console {
			consoleWriter = os.Stdout
		}
		textHandler := slog.NewTextHandler(consoleWriter, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(jsonHandler)
		consoleLogger = slog.New(textHandler)
		loggerMu.Unlock()

		slog.SetDefault(structuredLogger)
		initialized = true
	})
	return initErr
}

func firstNonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// IsInitialized reports whether Init has run.
func IsInitialized() bool {
	return initialized
}

// SetLevel changes the level of all loggers created by ForService.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// Close releases the rotating file handle, if any.
func Close() error {
	if currentFileCloser != nil {
		return currentFileCloser.Close()
	}
	return nil
}

// ForService returns a logger scoped to a named component (e.g. "runner",
// "transcriber"). Falls back to a discarding logger if Init was never
// called, so packages can hold a *slog.Logger field safely before startup.
func ForService(name string) *slog.Logger {
	loggerMu.RLock()
	base := structuredLogger
	loggerMu.RUnlock()

	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := base.With("service", name)
	if consoleLogger != nil {
		return l
	}
	return l
}

// ErrNotInitialized is returned by operations that require Init to have run.
var ErrNotInitialized = errors.New("logging: not initialized")
