package logging

import (
	"log/slog"
)

// SetupMCPModeWithLevel routes all logging to the rotating file and
// installs the logger as the process default. The MCP stdio transport
// owns stdout and stderr; a single stray byte on either corrupts the
// JSON-RPC stream, so nothing may mirror to the terminal here.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}
