package nodeprobe

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/quil-exporter/internal/decode"
	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// StatusFlag asks the node binary to print its status and exit.
const StatusFlag = "-node-info"

// BinaryLocator finds the node executable. binfind.Finder implements it.
type BinaryLocator interface {
	Find() (string, bool)
}

// CommandRunner runs name with args in dir and returns combined output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// RunCommand is the CommandRunner backed by os/exec.
func RunCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}

// Output patterns per field. A field is read from the first pattern that
// matches; only the balance label changed across node releases.
var (
	peerIDPatterns        = []*regexp.Regexp{regexp.MustCompile(`Peer ID: (\S+)`)}
	peerScorePatterns     = []*regexp.Regexp{regexp.MustCompile(`Peer Score: (\d+(?:\.\d+)?)`)}
	maxFramePatterns      = []*regexp.Regexp{regexp.MustCompile(`Max Frame: (\d+)`)}
	seniorityPatterns     = []*regexp.Regexp{regexp.MustCompile(`Seniority: (\d+)`)}
	ringPatterns          = []*regexp.Regexp{regexp.MustCompile(`Prover Ring: (-?\d+)`)}
	activeWorkersPatterns = []*regexp.Regexp{regexp.MustCompile(`Active Workers: (\d+)`)}
)

// Owned balance replaced Unclaimed balance; older nodes still print the latter.
var balancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Owned balance: ([\d.]+)`),
	regexp.MustCompile(`Unclaimed balance: ([\d.]+)`),
}

// ExecConfig configures the executable strategy.
type ExecConfig struct {
	Timeout time.Duration
	Runner  CommandRunner
}

// ExecProbe runs the node binary with StatusFlag and parses its text output.
// A field whose pattern does not match keeps its default.
type ExecProbe struct {
	locator  BinaryLocator
	timeout  time.Duration
	run      CommandRunner
	hostname HostnameFunc
	log      zerolog.Logger
}

// NewExecProbe creates an executable strategy.
func NewExecProbe(locator BinaryLocator, cfg ExecConfig, hostname HostnameFunc) *ExecProbe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultExecTimeout
	}
	if cfg.Runner == nil {
		cfg.Runner = RunCommand
	}
	if hostname == nil {
		hostname = DefaultHostname
	}
	return &ExecProbe{
		locator:  locator,
		timeout:  cfg.Timeout,
		run:      cfg.Runner,
		hostname: hostname,
		log:      logger.WithComponent("nodeprobe").With().Str("probe", "exec").Logger(),
	}
}

func (p *ExecProbe) Name() string { return ModeExec }

func (p *ExecProbe) Probe(ctx context.Context) (*model.StatusRecord, error) {
	if p.locator == nil {
		return nil, errs.Process(errors.New("no binary locator"), "exec probe")
	}
	bin, ok := p.locator.Find()
	if !ok {
		return nil, errs.Process(errors.New("node binary not found"), "exec probe")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, runErr := p.run(ctx, filepath.Dir(bin), bin, StatusFlag)
	text := string(out)

	_, hasID := firstMatch(peerIDPatterns, text)
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, errs.Process(ctx.Err(), "%s %s", bin, StatusFlag)
		}
		if !hasID {
			return nil, errs.Process(runErr, "%s %s", bin, StatusFlag)
		}
		p.log.Warn().Err(runErr).Str("binary", bin).Msg("node exited with error, using partial output")
	}

	return p.parse(ctx, text), nil
}

// parse extracts a status record from the CLI text.
func (p *ExecProbe) parse(ctx context.Context, text string) *model.StatusRecord {
	rec := model.NewStatusRecord(p.hostname(ctx))

	rec.PeerID = model.UnknownPeerID
	if id, ok := firstMatch(peerIDPatterns, text); ok {
		rec.PeerID = id
	}
	if s, ok := firstMatch(peerScorePatterns, text); ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			rec.PeerScore = v
			rec.Mark(model.FieldPeerScore)
		}
	}
	if v, ok := matchInt(maxFramePatterns, text); ok {
		rec.MaxFrame = v
		rec.Mark(model.FieldMaxFrame)
	}
	if v, ok := matchInt(ringPatterns, text); ok {
		rec.Ring = v
		rec.Mark(model.FieldRing)
	}
	if v, ok := matchInt(activeWorkersPatterns, text); ok {
		rec.ActiveWorkers = v
		rec.Mark(model.FieldActiveWorkers)
	}
	if s, ok := firstMatch(seniorityPatterns, text); ok {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			rec.Seniority = v
			rec.Mark(model.FieldSeniority)
		}
	}
	if s, ok := firstMatch(balancePatterns, text); ok {
		if d, err := decode.ParseBalance(s); err == nil {
			rec.UnclaimedBalance = d
			rec.Mark(model.FieldUnclaimedBalance)
		}
	}
	return rec
}

func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func matchInt(patterns []*regexp.Regexp, text string) (int64, bool) {
	s, ok := firstMatch(patterns, text)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
