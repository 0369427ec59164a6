// Package logsource provides the node's recent log window.
//
// Two shapes live here. Streaming sources (TCP, stdin) push lines as they
// arrive and feed a Buffer. Windows (journalctl, Buffer) answer the scan's
// "lines from the last N" question on demand.
package logsource

import (
	"context"
	"time"

	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// LogSource is a unified interface for streaming line inputs (TCP, stdin).
type LogSource interface {
	Lines() <-chan model.LogLine // read-only channel of log lines
	Stop()                       // graceful shutdown
	Name() string                // "tcp", "stdin"
}

// Noop is the window used when log scanning is disabled.
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Recent(context.Context, string, time.Duration) ([]string, error) {
	return nil, nil
}
