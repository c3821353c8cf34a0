// Package cmdutil holds the start-up steps shared by the commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"interdiag/internal/config"
	"interdiag/internal/logging"
)

// Exit codes shared by every command.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// Setup loads the environment configuration and builds a logger on stderr.
func Setup(stderr io.Writer) (config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(stderr, cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// Fail reports err on stderr and returns ExitFatal.
func Fail(stderr io.Writer, command string, err error) int {
	_, _ = fmt.Fprintf(stderr, "%s: %v\n", command, err)
	return ExitFatal
}

// WriteFile writes through fn into path, closing it and reporting the first
// error.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
