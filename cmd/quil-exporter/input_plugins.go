package main

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/logsource"
	"github.com/tinytelemetry/quil-exporter/internal/tcpserver"
)

// Stdin feed modes. auto reads stdin only when it is a pipe, as in
// `journalctl -fu quilibrium -o cat | quil-exporter`.
const (
	stdinAuto = "auto"
	stdinOn   = "on"
	stdinOff  = "off"
)

// InputSourcePlugin builds one push feed for the buffer window.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (logsource.LogSource, error)
}

// InputPluginConfig selects the feeds that fill the buffer window.
type InputPluginConfig struct {
	TCPEnabled bool
	TCPAddr    string
	TCP        tcpserver.ServerConfig
	Stdin      string
	// StdinStat reports on standard input; os.Stdin.Stat when nil.
	StdinStat func() (os.FileInfo, error)
}

func inputPluginConfig(cfg appConfig) InputPluginConfig {
	return InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
		TCP: tcpserver.ServerConfig{
			LineChannelSize: cfg.MuxBufferSize,
			MaxLineSize:     cfg.TCPMaxLine,
		},
		Stdin: cfg.StdinInput,
	}
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	stat := cfg.StdinStat
	if stat == nil {
		stat = os.Stdin.Stat
	}
	return []InputSourcePlugin{
		tcpInputPlugin{addr: cfg.TCPAddr, enabled: cfg.TCPEnabled, conf: cfg.TCP},
		stdinInputPlugin{mode: cfg.Stdin, stat: stat},
	}
}

// buildSources starts every enabled feed. A feed that fails to start is
// logged and skipped so the exporter still serves probe gauges.
func buildSources(ctx context.Context, cfg InputPluginConfig) []logsource.LogSource {
	log := logger.WithComponent("inputs")

	var sources []logsource.LogSource
	for _, plugin := range buildInputPlugins(cfg) {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Error().Err(err).Str("plugin", plugin.Name()).Msg("node log feed unavailable")
			continue
		}
		log.Debug().Str("plugin", plugin.Name()).Msg("node log feed started")
		sources = append(sources, src)
	}
	return sources
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
	conf    tcpserver.ServerConfig
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (logsource.LogSource, error) {
	server := tcpserver.NewServer(p.addr, p.conf)
	if err := server.Start(); err != nil {
		return nil, errors.Wrapf(err, "start node log listener on %s", p.addr)
	}
	return logsource.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	mode string
	stat func() (os.FileInfo, error)
}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	switch p.mode {
	case stdinOn:
		return true
	case stdinOff:
		return false
	}
	info, err := p.stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (logsource.LogSource, error) {
	return logsource.NewStdinSource(ctx), nil
}
