// Package logger provides the structured slog logger for the agent.
// All logs are written in JSON format to <logDir>/agent.log with size-based
// rotation, so a long-lived device install cannot fill the disk.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewAgentLogger creates a JSON slog.Logger that writes to <logDir>/agent.log.
// The directory is created if it does not exist. Rotation keeps at most five
// 10 MB files.
func NewAgentLogger(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	out := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "agent.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
