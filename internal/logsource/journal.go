package logsource

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// maxJournalLine bounds a single kept line. Longer lines are dropped on
// their own; the lines after them are still returned.
const maxJournalLine = 1024 * 1024

// Runner runs name with args and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second
	return cmd.Output()
}

// JournalConfig configures the journalctl window.
type JournalConfig struct {
	Binary   string
	Timeout  time.Duration
	Runner   Runner
	// LookPath resolves Binary; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

// Journal reads the service's recent lines from the systemd journal.
type Journal struct {
	binary   string
	timeout  time.Duration
	run      Runner
	lookPath func(string) (string, error)
	log      zerolog.Logger
}

// NewJournal creates a journalctl-backed window.
func NewJournal(cfg JournalConfig) *Journal {
	if cfg.Binary == "" {
		cfg.Binary = "journalctl"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultLogTimeout
	}
	if cfg.Runner == nil {
		cfg.Runner = runOutput
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	return &Journal{binary: cfg.Binary, timeout: cfg.Timeout, run: cfg.Runner, lookPath: cfg.LookPath, log: logger.WithComponent("journal")}
}

func (j *Journal) Name() string { return "journal" }

// Recent returns the service's journal lines since window ago, oldest first.
func (j *Journal) Recent(ctx context.Context, service string, window time.Duration) ([]string, error) {
	if service == "" {
		service = model.DefaultServiceName
	}
	bin, err := j.lookPath(j.binary)
	if err != nil {
		return nil, errs.Process(err, "locate %s", j.binary)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	out, err := j.run(ctx, bin, JournalArgs(service, window)...)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.CombineErrors(ctx.Err(), err)
		}
		return nil, errs.Process(err, "%s -u %s", j.binary, service)
	}
	lines, oversized := splitLines(out)
	if oversized > 0 {
		j.log.Warn().
			Int("dropped", oversized).
			Int("max_line_size", maxJournalLine).
			Str("service", service).
			Msg("skipped oversized journal lines")
	}
	return lines, nil
}

// JournalArgs builds the journalctl arguments for service over window.
func JournalArgs(service string, window time.Duration) []string {
	if window <= 0 {
		window = model.DefaultLogWindow
	}
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return []string{
		"-u", service,
		"--since", strconv.FormatInt(secs, 10) + " seconds ago",
		"--no-pager",
		"-o", "cat",
	}
}

// splitLines returns the non-empty lines of out and how many were longer
// than maxJournalLine.
func splitLines(out []byte) (lines []string, oversized int) {
	for len(out) > 0 {
		var line []byte
		if i := bytes.IndexByte(out, '\n'); i >= 0 {
			line, out = out[:i], out[i+1:]
		} else {
			line, out = out, nil
		}
		line = bytes.TrimSuffix(line, []byte("\r"))
		switch {
		case len(line) == 0:
		case len(line) > maxJournalLine:
			oversized++
		default:
			lines = append(lines, string(line))
		}
	}
	return lines, oversized
}
