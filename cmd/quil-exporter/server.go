package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/quil-exporter/internal/binfind"
	"github.com/tinytelemetry/quil-exporter/internal/collector"
	"github.com/tinytelemetry/quil-exporter/internal/httpserver"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/logscan"
	"github.com/tinytelemetry/quil-exporter/internal/logsource"
	"github.com/tinytelemetry/quil-exporter/internal/metrics"
	"github.com/tinytelemetry/quil-exporter/internal/model"
	"github.com/tinytelemetry/quil-exporter/internal/nodeprobe"
)

// runServer serves /metrics until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	cleanupLogger, err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Debug:  cfg.Debug,
		Output: cfg.LogOutput,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer cleanupLogger()
	log := logger.WithComponent("server")

	probe, err := buildProbe(cfg)
	if err != nil {
		return err
	}

	scanner, err := buildScanner(cfg.SignalSchema)
	if err != nil {
		return err
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	var (
		window model.LogWindow
		feed   []string
	)
	switch cfg.LogSource {
	case logSourceJournal:
		window = logsource.NewJournal(logsource.JournalConfig{Timeout: cfg.LogTimeout})
	case logSourceBuffer:
		buffer := logsource.NewBuffer(cfg.LogBuffer)
		mux := NewSourceMultiplexer(ctx, buildSources(ctx, inputPluginConfig(cfg)), cfg.MuxBufferSize)
		mux.Start()
		defer mux.Stop()
		if !mux.HasSources() {
			log.Warn().Msg("log-source is buffer but no input is enabled; log signals will stay at defaults")
		}
		feed = mux.SourceNames()
		g.Go(func() error {
			buffer.Consume(gctx, mux.Lines())
			return nil
		})
		window = buffer
	default:
		window = logsource.Noop{}
	}

	coll := collector.New(collector.Config{
		Registry:    metrics.NewRegistry(),
		Probe:       probe,
		Window:      window,
		Scanner:     scanner,
		ServiceName: cfg.ServiceName,
		LogWindow:   cfg.LogWindow,
		LogTimeout:  cfg.LogTimeout,
	})

	apiServer := httpserver.NewServer(cfg.ListenAddr, coll)
	if err := apiServer.Start(); err != nil {
		return errors.Wrap(err, "failed to start metrics server")
	}
	defer apiServer.Stop()

	printStartupBanner(cfg, probe.Name(), window.Name(), feed)
	log.Info().
		Str("addr", apiServer.Addr()).
		Str("probe", probe.Name()).
		Str("window", window.Name()).
		Msg("exporter started")

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("errgroup exited with error")
	}

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

func buildProbe(cfg appConfig) (model.StatusProbe, error) {
	hostname := nodeprobe.DefaultHostname
	if cfg.Hostname != "" {
		hostname = nodeprobe.StaticHostname(cfg.Hostname)
	}

	rpc := nodeprobe.NewRPCProbe(nodeprobe.RPCConfig{
		Host:    cfg.RPCHost,
		Port:    cfg.RPCPort,
		Timeout: cfg.RPCTimeout,
	}, hostname)
	exec := nodeprobe.NewExecProbe(
		binfind.New(cfg.NodeDir, cfg.BinaryPath),
		nodeprobe.ExecConfig{Timeout: cfg.ExecTimeout},
		hostname,
	)

	probe, err := nodeprobe.Select(cfg.ProbeMode, rpc, exec)
	if err != nil {
		return nil, errors.Wrap(err, "select probe")
	}
	return probe, nil
}

// nodeBinaryLine reports the executable the exec probe would run right now.
func nodeBinaryLine(cfg appConfig, check, dot string, dim lipgloss.Style) string {
	bin, ok := binfind.New(cfg.NodeDir, cfg.BinaryPath).Find()
	if !ok {
		return fmt.Sprintf("    %s  Node Binary    %s", dot, dim.Render("not found"))
	}
	desc := shortenPath(bin)
	if v, ok := binfind.Version(bin); ok {
		desc = "v" + v + "  " + desc
	}
	return fmt.Sprintf("    %s  Node Binary    %s", check, dim.Render(desc))
}

func buildScanner(schemaPath string) (*logscan.Scanner, error) {
	signals := logscan.DefaultSignals()
	if schemaPath != "" {
		loaded, err := logscan.LoadSchema(schemaPath)
		if err != nil {
			return nil, errors.Wrapf(err, "load signal schema %s", schemaPath)
		}
		signals = loaded
	}
	return logscan.NewScanner(signals)
}

func printStartupBanner(cfg appConfig, probeName, windowName string, feed []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗ ╦ ╦╦╦
    ║═╬╗║ ║║║
    ╚═╝╚╚═╝╩╩═╝  exporter`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Metrics        %s", check, cyan.Render(cfg.ListenAddr+"/metrics")))
	if len(feed) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Log Feed       %s", check, cyan.Render(strings.Join(feed, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Log Feed       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Node"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Probe          %s", check, dim.Render(probeName)))
	if cfg.ProbeMode != nodeprobe.ModeExec {
		lines = append(lines, fmt.Sprintf("    %s  RPC            %s", check, dim.Render(fmt.Sprintf("%s:%d", cfg.RPCHost, cfg.RPCPort))))
	}
	if cfg.ProbeMode != nodeprobe.ModeRPC {
		lines = append(lines, fmt.Sprintf("    %s  Node Dir       %s", check, dim.Render(shortenPath(cfg.NodeDir))))
		lines = append(lines, nodeBinaryLine(cfg, check, dot, dim))
	}
	if windowName == logSourceNone {
		lines = append(lines, fmt.Sprintf("    %s  Log Window     %s", dot, dim.Render("disabled")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Log Window     %s", check, dim.Render(fmt.Sprintf("%s, %s of %s", windowName, cfg.LogWindow, cfg.ServiceName))))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}
	if cfg.SignalSchema != "" {
		lines = append(lines, fmt.Sprintf("    %s  Signal Schema  %s", check, dim.Render(shortenPath(cfg.SignalSchema))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Signal Schema  %s", dot, dim.Render("built-in")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
