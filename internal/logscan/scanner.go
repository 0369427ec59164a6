// Package logscan recovers the latest value of the node's log-reported
// signals from a window of recent log lines.
//
// Lines are walked newest first. Each signal is settled by the first line
// that carries its marker and matches its pattern, so the value is the most
// recent one in the window. The walk stops once every core signal has been
// settled; older lines are mostly stale repeats of the same events.
//
// The stop rule assumes the window is in true arrival order. A source that
// reorders or duplicates timestamps can make a settled value stale.
package logscan

import (
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Signal is one versioned schema entry: a cheap substring marker guarding a
// regular expression whose first non-empty capture group is the value.
type Signal struct {
	Name    string
	Metric  string
	Marker  string
	Pattern *regexp.Regexp
	Core    bool
	Default float64
	Version int
}

// Value is the outcome of one signal in one scan.
type Value struct {
	Value float64
	Found bool
}

// Result summarizes one scan.
type Result struct {
	Values    map[string]Value
	// Inspected counts the lines read before the scan ended.
	Inspected int
	// Stopped is true when the scan ended before the window was exhausted.
	Stopped   bool
	// Misses counts, per signal, lines whose marker matched but whose pattern did not.
	Misses    map[string]int
}

// Found reports whether name was settled by the scan.
func (r Result) Found(name string) bool {
	return r.Values[name].Found
}

// Scanner applies a fixed signal schema to log windows. It holds no per-scan
// state and may be shared.
type Scanner struct {
	signals []Signal
	core    int
}

// NewScanner builds a scanner for signals.
func NewScanner(signals []Signal) (*Scanner, error) {
	if len(signals) == 0 {
		return nil, errors.New("logscan: no signals")
	}
	s := &Scanner{signals: append([]Signal(nil), signals...)}
	for _, sig := range s.signals {
		if sig.Pattern == nil || sig.Marker == "" {
			return nil, errors.Newf("logscan: signal %q needs a marker and a pattern", sig.Name)
		}
		if sig.Core {
			s.core++
		}
	}
	return s, nil
}

// Signals returns the schema the scanner applies.
func (s *Scanner) Signals() []Signal {
	return append([]Signal(nil), s.signals...)
}

// Scan walks lines, which must yield newest first, and returns every
// signal's outcome. emit, when non-nil, is called as soon as a signal is
// settled. Signals that are never settled report their default with Found false.
func (s *Scanner) Scan(lines iter.Seq[string], emit func(Signal, float64)) Result {
	res := Result{
		Values: make(map[string]Value, len(s.signals)),
		Misses: make(map[string]int),
	}
	for _, sig := range s.signals {
		res.Values[sig.Name] = Value{Value: sig.Default}
	}

	found := make([]bool, len(s.signals))
	remaining := len(s.signals)
	coreLeft := s.core

	for line := range lines {
		res.Inspected++

		for i := range s.signals {
			if found[i] {
				continue
			}
			sig := &s.signals[i]
			if !strings.Contains(line, sig.Marker) {
				continue
			}
			v, ok := extract(sig, line)
			if !ok {
				res.Misses[sig.Name]++
				continue
			}

			found[i] = true
			remaining--
			if sig.Core {
				coreLeft--
			}
			res.Values[sig.Name] = Value{Value: v, Found: true}
			if emit != nil {
				emit(*sig, v)
			}
		}

		if remaining == 0 || (s.core > 0 && coreLeft == 0) {
			res.Stopped = true
			break
		}
	}

	return res
}

func extract(sig *Signal, line string) (float64, bool) {
	m := sig.Pattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	for _, group := range m[1:] {
		if group == "" {
			continue
		}
		v, err := strconv.ParseFloat(group, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// Newest adapts an oldest-first slice into a newest-first sequence.
func Newest(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := len(lines) - 1; i >= 0; i-- {
			if !yield(lines[i]) {
				return
			}
		}
	}
}
