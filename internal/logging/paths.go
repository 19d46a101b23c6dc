package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir is ~/.vibemcp/logs, falling back to the temp directory
// when the home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vibemcp", "logs")
	}
	return filepath.Join(home, ".vibemcp", "logs")
}

// DefaultLogPath is the server log file inside DefaultLogDir.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// FindLogFile resolves the log file the logs command should read: the
// explicit path when given, otherwise the default server log. A path
// that does not exist is an error, since tailing nothing helps nobody.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found. Server may not have run yet.\nExpected at: %s", path)
	}
	return path, nil
}
