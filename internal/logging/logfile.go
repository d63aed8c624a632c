package logging

import (
	"fmt"
	"os"
	"sync"
)

// LogFile exposes read and clear operations on the append-only log file.
// Clearing truncates in place so the zap file core, opened with O_APPEND,
// keeps writing without reopening.
type LogFile struct {
	mu   sync.Mutex
	path string
}

// NewLogFile wraps an existing log file path.
func NewLogFile(path string) *LogFile {
	return &LogFile{path: path}
}

// Path returns the underlying file path.
func (l *LogFile) Path() string {
	return l.path
}

// Read returns the full log text. A missing file reads as empty.
func (l *LogFile) Read() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log file: %w", err)
	}
	return string(data), nil
}

// Clear truncates the log file. Used by the clear endpoint and the daily
// rotation schedule.
func (l *LogFile) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Truncate(l.path, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate log file: %w", err)
	}
	return nil
}
