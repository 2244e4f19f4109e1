// Package logging provides the process logger, built on charmbracelet/log.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger = New(os.Stderr, "info")

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(level),
		ReportTimestamp: true,
		Prefix:          "scrumboard",
	})

	if os.Getenv("LOG_FORMAT") == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}

	return logger
}

// Init replaces the process logger.
func Init(level string) {
	Logger = New(os.Stderr, level)
}

func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
