package main

import (
	"time"

	"github.com/tinytelemetry/quil-exporter/internal/httpserver"
	"github.com/tinytelemetry/quil-exporter/internal/model"
	"github.com/tinytelemetry/quil-exporter/internal/nodeprobe"
	"github.com/tinytelemetry/quil-exporter/internal/tcpserver"
)

// Log window sources.
const (
	logSourceJournal = "journal"
	logSourceBuffer  = "buffer"
	logSourceNone    = "none"
)

const (
	defaultListenAddr    = httpserver.DefaultAddr
	defaultServiceName   = model.DefaultServiceName
	defaultRPCHost       = model.DefaultRPCHost
	defaultRPCPort       = model.DefaultRPCPort
	defaultRPCTimeout    = model.DefaultRPCTimeout
	defaultProbeMode     = nodeprobe.ModeAuto
	defaultExecTimeout   = model.DefaultExecTimeout
	defaultLogSource     = logSourceJournal
	defaultLogWindow     = model.DefaultLogWindow
	defaultLogTimeout    = model.DefaultLogTimeout
	defaultLogBuffer     = model.DefaultLogBuffer
	defaultTCPAddr       = tcpserver.DefaultAddr
	defaultTCPMaxLine    = tcpserver.DefaultMaxLineSize
	defaultStdinInput    = stdinAuto
	defaultMuxBufferSize = DefaultMuxBuffer
	defaultLogLevel      = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	ListenAddr    string        `mapstructure:"listen-addr"`
	ServiceName   string        `mapstructure:"service-name"`
	RPCHost       string        `mapstructure:"rpc-host"`
	RPCPort       int           `mapstructure:"rpc-port"`
	RPCTimeout    time.Duration `mapstructure:"rpc-timeout"`
	ProbeMode     string        `mapstructure:"probe-mode"`
	NodeDir       string        `mapstructure:"node-dir"`
	BinaryPath    string        `mapstructure:"binary-path"`
	ExecTimeout   time.Duration `mapstructure:"exec-timeout"`
	Hostname      string        `mapstructure:"hostname"`
	LogSource     string        `mapstructure:"log-source"`
	LogWindow     time.Duration `mapstructure:"log-window"`
	LogTimeout    time.Duration `mapstructure:"log-timeout"`
	LogBuffer     int           `mapstructure:"log-buffer"`
	TCPEnabled    bool          `mapstructure:"tcp-enabled"`
	TCPAddr       string        `mapstructure:"tcp-addr"`
	TCPMaxLine    int           `mapstructure:"tcp-max-line"`
	StdinInput    string        `mapstructure:"stdin-input"`
	MuxBufferSize int           `mapstructure:"mux-buffer-size"`
	SignalSchema  string        `mapstructure:"signal-schema"`
	LogLevel      string        `mapstructure:"log-level"`
	LogOutput     string        `mapstructure:"log-output"`
	Debug         bool          `mapstructure:"debug"`
	ConfigPath    string        `mapstructure:"-"` // not from config file
}
