package model

import (
	"context"
	"time"
)

// StatusProbe obtains the node's current status. An error means no usable
// identity was obtained; partial field failures are reported through
// StatusRecord.Reported instead.
type StatusProbe interface {
	Name() string
	Probe(ctx context.Context) (*StatusRecord, error)
}

// LogWindow returns the node's log lines received within window, oldest first.
type LogWindow interface {
	Name() string
	Recent(ctx context.Context, service string, window time.Duration) ([]string, error)
}

// GaugeSink receives node gauge writes as the cycle produces them.
// metrics.Registry is the production sink.
type GaugeSink interface {
	Set(metric string, labels Labels, value float64) error
}
