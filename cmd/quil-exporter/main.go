package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/quil-exporter/internal/nodeprobe"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/quil-exporter/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("quil-exporter - Quilibrium node metrics exporter\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, errors.Wrap(err, "finding home directory")
	}

	v := viper.New()
	v.SetEnvPrefix("QUIL_EXPORTER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Env names understood by earlier exporter deployments.
	_ = v.BindEnv("service-name", "QUIL_EXPORTER_SERVICE_NAME", "service_name")
	_ = v.BindEnv("rpc-port", "QUIL_EXPORTER_RPC_PORT", "api_port")

	v.SetDefault("listen-addr", defaultListenAddr)
	v.SetDefault("service-name", defaultServiceName)
	v.SetDefault("rpc-host", defaultRPCHost)
	v.SetDefault("rpc-port", defaultRPCPort)
	v.SetDefault("rpc-timeout", defaultRPCTimeout)
	v.SetDefault("probe-mode", defaultProbeMode)
	v.SetDefault("node-dir", filepath.Join(home, "ceremonyclient", "node"))
	v.SetDefault("binary-path", "")
	v.SetDefault("exec-timeout", defaultExecTimeout)
	v.SetDefault("hostname", "")
	v.SetDefault("log-source", defaultLogSource)
	v.SetDefault("log-window", defaultLogWindow)
	v.SetDefault("log-timeout", defaultLogTimeout)
	v.SetDefault("log-buffer", defaultLogBuffer)
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-addr", defaultTCPAddr)
	v.SetDefault("tcp-max-line", defaultTCPMaxLine)
	v.SetDefault("stdin-input", defaultStdinInput)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("signal-schema", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-output", "stderr")
	v.SetDefault("debug", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "quil-exporter", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(&cfg, home); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg *appConfig, home string) error {
	if cfg.RPCPort <= 0 || cfg.RPCPort > 65535 {
		return errors.Newf("invalid rpc-port: %d", cfg.RPCPort)
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen-addr must not be empty")
	}

	cfg.ProbeMode = strings.ToLower(strings.TrimSpace(cfg.ProbeMode))
	switch cfg.ProbeMode {
	case nodeprobe.ModeAuto, nodeprobe.ModeRPC, nodeprobe.ModeExec:
	default:
		return errors.Newf("invalid probe-mode: %q (want auto, rpc or exec)", cfg.ProbeMode)
	}

	cfg.LogSource = strings.ToLower(strings.TrimSpace(cfg.LogSource))
	switch cfg.LogSource {
	case logSourceJournal, logSourceBuffer, logSourceNone:
	default:
		return errors.Newf("invalid log-source: %q (want journal, buffer or none)", cfg.LogSource)
	}

	if cfg.RPCTimeout <= 0 {
		return errors.Newf("invalid rpc-timeout: %s", cfg.RPCTimeout)
	}
	if cfg.ExecTimeout <= 0 {
		return errors.Newf("invalid exec-timeout: %s", cfg.ExecTimeout)
	}
	if cfg.LogTimeout <= 0 {
		return errors.Newf("invalid log-timeout: %s", cfg.LogTimeout)
	}
	if cfg.LogWindow <= 0 {
		return errors.Newf("invalid log-window: %s", cfg.LogWindow)
	}
	if cfg.LogBuffer <= 0 {
		return errors.Newf("invalid log-buffer: %d", cfg.LogBuffer)
	}
	if cfg.TCPMaxLine <= 0 {
		return errors.Newf("invalid tcp-max-line: %d", cfg.TCPMaxLine)
	}

	cfg.StdinInput = strings.ToLower(strings.TrimSpace(cfg.StdinInput))
	switch cfg.StdinInput {
	case "":
		cfg.StdinInput = stdinAuto
	case stdinAuto, stdinOn, stdinOff:
	default:
		return errors.Newf("invalid stdin-input: %q (want auto, on or off)", cfg.StdinInput)
	}
	if cfg.LogSource == logSourceBuffer && !cfg.TCPEnabled && cfg.StdinInput == stdinOff {
		return errors.New("log-source buffer has no feed: enable tcp-enabled or stdin-input")
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.NodeDir, &cfg.BinaryPath, &cfg.SignalSchema} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
	return nil
}
