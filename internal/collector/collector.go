// Package collector runs one poll cycle per scrape: reset the registry,
// probe the node, scan its log window, and render the result.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/quil-exporter/internal/decode"
	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/logscan"
	"github.com/tinytelemetry/quil-exporter/internal/metrics"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// Scrape outcomes recorded in quilibrium_exporter_scrapes_total.
const (
	ResultOK          = "ok"
	ResultDegraded    = "degraded"
	ResultProbeFailed = "probe_failed"
)

// Config wires a Collector.
type Config struct {
	Registry    *metrics.Registry
	Probe       model.StatusProbe
	Window      model.LogWindow
	Scanner     *logscan.Scanner
	ServiceName string
	LogWindow   time.Duration
	LogTimeout  time.Duration
}

// Collector serializes poll cycles against one registry.
type Collector struct {
	mu          sync.Mutex
	registry    *metrics.Registry
	gauges      model.GaugeSink
	probe       model.StatusProbe
	window      model.LogWindow
	scanner     *logscan.Scanner
	serviceName string
	logWindow   time.Duration
	logTimeout  time.Duration
	log         zerolog.Logger

	lastMu     sync.RWMutex
	lastScrape time.Time
	lastResult string

	now func() time.Time
}

// New creates a Collector. A nil Window disables log scanning and a nil
// Scanner uses the embedded signal schema.
func New(cfg Config) *Collector {
	if cfg.Registry == nil {
		cfg.Registry = metrics.NewRegistry()
	}
	if cfg.Scanner == nil {
		sc, err := logscan.NewScanner(logscan.DefaultSignals())
		if err != nil {
			panic(err)
		}
		cfg.Scanner = sc
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = model.DefaultServiceName
	}
	if cfg.LogWindow <= 0 {
		cfg.LogWindow = model.DefaultLogWindow
	}
	if cfg.LogTimeout <= 0 {
		cfg.LogTimeout = model.DefaultLogTimeout
	}
	return &Collector{
		registry:    cfg.Registry,
		gauges:      cfg.Registry,
		probe:       cfg.Probe,
		window:      cfg.Window,
		scanner:     cfg.Scanner,
		serviceName: cfg.ServiceName,
		logWindow:   cfg.LogWindow,
		logTimeout:  cfg.LogTimeout,
		log:         logger.WithComponent("collector"),
		now:         time.Now,
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *metrics.Registry {
	return c.registry
}

// LastScrape returns when the last cycle finished and its outcome.
// The zero time means no scrape has run yet.
func (c *Collector) LastScrape() (time.Time, string) {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return c.lastScrape, c.lastResult
}

// Scrape runs one full poll cycle and returns the text exposition. It never
// fails; a broken source leaves its gauges at their defaults or unset.
func (c *Collector) Scrape(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	result := c.cycle(ctx)
	c.registry.RecordScrape(result, c.now().Sub(start))

	c.lastMu.Lock()
	c.lastScrape, c.lastResult = c.now(), result
	c.lastMu.Unlock()

	text, err := c.registry.Render()
	if err != nil {
		c.log.Error().Err(err).Msg("render failed")
		return ""
	}
	return text
}

func (c *Collector) cycle(ctx context.Context) string {
	c.registry.Reset()

	status, err := c.probeStatus(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("class", errs.Class(err)).Msg("node status probe failed")
		return ResultProbeFailed
	}

	labels := status.Labels()
	c.writeStatus(status, labels)

	if c.window == nil {
		return ResultOK
	}
	if !c.scanLogs(ctx, status, labels) {
		return ResultDegraded
	}
	return ResultOK
}

// probeStatus converts a probe panic into an error so one bad cycle never
// takes the exporter down.
func (c *Collector) probeStatus(ctx context.Context) (status *model.StatusRecord, err error) {
	if c.probe == nil {
		return nil, errs.ErrNoIdentity
	}
	defer func() {
		if r := recover(); r != nil {
			status, err = nil, errors.Newf("probe %s panicked: %v", c.probe.Name(), r)
		}
	}()

	status, err = c.probe.Probe(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil || status.PeerID == "" {
		return nil, errs.ErrNoIdentity
	}
	return status, nil
}

func (c *Collector) writeStatus(status *model.StatusRecord, labels model.Labels) {
	c.set(model.MetricPeerScore, labels, status.PeerScore)
	c.set(model.MetricMaxFrame, labels, float64(status.MaxFrame))
	c.set(model.MetricUnclaimedBalance, labels, decode.Float(status.UnclaimedBalance))
	c.set(model.MetricSeniority, labels, float64(status.Seniority))
	c.set(model.MetricRing, labels, float64(status.Ring))
	c.set(model.MetricActiveWorkers, labels, float64(status.ActiveWorkers))
}

// scanLogs populates the log-sourced gauges. A log-sourced value never
// replaces a field the probe reported this cycle. An unreadable window is
// scanned as empty, so every signal lands on its default, and false is returned.
func (c *Collector) scanLogs(ctx context.Context, status *model.StatusRecord, labels model.Labels) bool {
	ctx, cancel := context.WithTimeout(ctx, c.logTimeout)
	defer cancel()

	ok := true
	lines, err := c.window.Recent(ctx, c.serviceName, c.logWindow)
	if err != nil {
		c.log.Warn().Err(err).
			Str("window", c.window.Name()).
			Str("class", errs.Class(err)).
			Msg("log window unavailable, log signals left at defaults")
		lines, ok = nil, false
	}

	overridden := func(metric string) bool {
		f, ok := model.FieldForMetric(metric)
		return ok && status.Has(f)
	}

	res := c.scanner.Scan(logscan.Newest(lines), func(sig logscan.Signal, v float64) {
		if overridden(sig.Metric) {
			return
		}
		c.set(sig.Metric, labels, v)
	})

	for _, sig := range c.scanner.Signals() {
		if res.Found(sig.Name) || overridden(sig.Metric) {
			continue
		}
		c.set(sig.Metric, labels, sig.Default)
	}
	for name, n := range res.Misses {
		c.registry.RecordParseMisses(name, n)
	}
	c.registry.LinesScanned.Set(float64(res.Inspected))

	c.log.Debug().
		Int("lines", len(lines)).
		Int("inspected", res.Inspected).
		Bool("stopped", res.Stopped).
		Msg("log window scanned")
	return ok
}

func (c *Collector) set(metric string, labels model.Labels, v float64) {
	if err := c.gauges.Set(metric, labels, v); err != nil {
		c.log.Warn().Err(err).Str("metric", metric).Msg("gauge write failed")
	}
}
