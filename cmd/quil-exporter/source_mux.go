package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/logsource"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 50_000

// SourceMultiplexer merges the pushed log sources into the single stream that
// feeds the log buffer.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sources []logsource.LogSource
	lines   chan model.LogLine
	log     zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSourceMultiplexer(parent context.Context, sources []logsource.LogSource, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:     ctx,
		cancel:  cancel,
		sources: sources,
		lines:   make(chan model.LogLine, buffer),
		log:     logger.WithComponent("mux"),
	}
}

func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for _, src := range m.sources {
			m.wg.Add(1)
			go m.forward(src)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

// SourceNames lists the merged sources in registration order.
func (m *SourceMultiplexer) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		names = append(names, src.Name())
	}
	return names
}

func (m *SourceMultiplexer) Lines() <-chan model.LogLine {
	return m.lines
}

func (m *SourceMultiplexer) forward(src logsource.LogSource) {
	defer m.wg.Done()

	sourceLines := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case line, ok := <-sourceLines:
			if !ok {
				m.log.Debug().Str("source", src.Name()).Msg("source closed")
				return
			}
			if line.Line == "" {
				continue
			}
			if line.Received.IsZero() {
				line.Received = time.Now()
			}
			select {
			case m.lines <- line:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.lines)
	})
}
