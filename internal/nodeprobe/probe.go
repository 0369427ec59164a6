// Package nodeprobe obtains the node's status through interchangeable
// strategies: the node's local RPC gateway or its CLI status output.
package nodeprobe

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// Probe selection modes.
const (
	ModeAuto = "auto"
	ModeRPC  = "rpc"
	ModeExec = "exec"
)

// HostnameFunc resolves the local machine identity used as a label.
type HostnameFunc func(ctx context.Context) string

// DefaultHostname asks the OS through gopsutil and falls back to os.Hostname.
func DefaultHostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return model.UnknownPeerID
}

// StaticHostname returns a HostnameFunc that always reports name.
func StaticHostname(name string) HostnameFunc {
	return func(context.Context) string { return name }
}

// Select returns the strategy for mode. Auto tries RPC first and falls back
// to the executable.
func Select(mode string, rpc, exec model.StatusProbe) (model.StatusProbe, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeRPC:
		return rpc, nil
	case ModeExec:
		return exec, nil
	case ModeAuto, "":
		return NewChain(rpc, exec), nil
	default:
		return nil, errors.Newf("unknown probe mode %q", mode)
	}
}

// Chain tries its probes in order and returns the first success.
type Chain struct {
	probes []model.StatusProbe
	log    zerolog.Logger
}

// NewChain builds a Chain, skipping nil probes.
func NewChain(probes ...model.StatusProbe) *Chain {
	c := &Chain{log: logger.WithComponent("nodeprobe")}
	for _, p := range probes {
		if p != nil {
			c.probes = append(c.probes, p)
		}
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.probes))
	for i, p := range c.probes {
		names[i] = p.Name()
	}
	return "auto(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Probe(ctx context.Context) (*model.StatusRecord, error) {
	if len(c.probes) == 0 {
		return nil, errors.Wrap(errs.ErrNoIdentity, "no probe configured")
	}

	var lastErr error
	for _, p := range c.probes {
		rec, err := p.Probe(ctx)
		if err == nil {
			return rec, nil
		}
		c.log.Warn().Err(err).Str("probe", p.Name()).Str("class", errs.Class(err)).Msg("probe failed, trying next")
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Wrap(lastErr, "all probes failed")
}
