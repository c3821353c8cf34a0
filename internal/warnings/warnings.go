// Package warnings accumulates recoverable problems found while processing a
// run. A Log is created per run and passed explicitly to each stage.
package warnings

import (
	"fmt"
	"sync"

	"interdiag/internal/logging"
)

// Entry is one recorded warning.
type Entry struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Log collects warnings and forwards each one to a logger at warn level.
// The zero value is not usable; call New.
type Log struct {
	mu      sync.Mutex
	logger  logging.Logger
	entries []Entry
	seen    map[string]struct{}
}

// New returns an empty Log. A nil logger discards forwarded messages.
func New(logger logging.Logger) *Log {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Log{logger: logger, seen: make(map[string]struct{})}
}

// Addf records a formatted warning for stage.
func (l *Log) Addf(stage, format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Stage: stage, Message: msg})
	l.mu.Unlock()
	l.logger.Warn(msg, "stage", stage)
}

// Once records the warning only the first time key is seen. It reports
// whether the warning was recorded.
func (l *Log) Once(key, stage, format string, args ...any) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	if _, dup := l.seen[key]; dup {
		l.mu.Unlock()
		return false
	}
	l.seen[key] = struct{}{}
	l.mu.Unlock()
	l.Addf(stage, format, args...)
	return true
}

// Entries returns a copy of the recorded warnings in insertion order.
func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded warnings.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
