package logsource

import (
	"github.com/tinytelemetry/quil-exporter/internal/model"
	"github.com/tinytelemetry/quil-exporter/internal/tcpserver"
)

// TCPSource wraps a tcpserver.Server as a LogSource.
type TCPSource struct {
	server *tcpserver.Server
}

// NewTCPSource creates a TCPSource from an already-started TCP server.
func NewTCPSource(server *tcpserver.Server) *TCPSource {
	return &TCPSource{server: server}
}

func (t *TCPSource) Lines() <-chan model.LogLine { return t.server.Lines() }
func (t *TCPSource) Stop()                       { _ = t.server.Stop() }
func (t *TCPSource) Name() string                { return "tcp" }
