package logsource

import (
	"context"
	"sync"
	"time"

	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// Buffer is a bounded ring of recently received lines. It is the window used
// when the node's logs are pushed to the exporter instead of read from the
// journal. Once full, the oldest line is overwritten.
type Buffer struct {
	mu    sync.Mutex
	lines []model.LogLine
	head  int // index of the oldest line
	size  int
	now   func() time.Time
}

// NewBuffer creates a Buffer holding at most capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = model.DefaultLogBuffer
	}
	return &Buffer{lines: make([]model.LogLine, capacity), now: time.Now}
}

func (b *Buffer) Name() string { return "buffer" }

// Append stores one line, stamping it with the current time if unset.
func (b *Buffer) Append(l model.LogLine) {
	if l.Received.IsZero() {
		l.Received = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.head + b.size) % len(b.lines)
	b.lines[idx] = l
	if b.size < len(b.lines) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.lines)
	}
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Recent returns lines received within window, oldest first. The feed is
// dedicated to one node, so service is not consulted.
func (b *Buffer) Recent(_ context.Context, _ string, window time.Duration) ([]string, error) {
	if window <= 0 {
		window = model.DefaultLogWindow
	}
	cutoff := b.now().Add(-window)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, b.size)
	for i := 0; i < b.size; i++ {
		l := b.lines[(b.head+i)%len(b.lines)]
		if l.Received.Before(cutoff) {
			continue
		}
		out = append(out, l.Line)
	}
	return out, nil
}

// Consume appends every line from lines until it closes or ctx is done.
func (b *Buffer) Consume(ctx context.Context, lines <-chan model.LogLine) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			b.Append(l)
		}
	}
}
