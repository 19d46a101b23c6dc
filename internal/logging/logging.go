package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where log output goes and how verbose it is.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	Level string
	// FilePath receives JSON lines, rotated per MaxSizeMB and MaxFiles.
	FilePath string
	// MaxSizeMB caps the live file before rotation. Zero means 10.
	MaxSizeMB int
	// MaxFiles is how many rotated files to keep. Zero means 5.
	MaxFiles int
	// WriteToStderr mirrors entries to stderr for interactive commands.
	// Must stay false when serving stdio.
	WriteToStderr bool
}

// DefaultConfig is the file-plus-stderr setup interactive commands use.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level, for --debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup opens the rotating log file and builds a JSON slog logger over
// it. The returned cleanup flushes and closes the file; call it when
// the command finishes.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	writer, err := NewRotatingWriter(cfg.FilePath, RotationOptions{
		MaxBytes:       int64(cfg.MaxSizeMB) << 20,
		MaxFiles:       cfg.MaxFiles,
		SyncEveryWrite: true,
	})
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = writer
	if cfg.WriteToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: LevelFromString(cfg.Level),
	}))

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// LevelFromString maps a configured level name to a slog.Level.
// Unknown names mean info.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
