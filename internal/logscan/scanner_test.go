package logscan

import (
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/quil-exporter/internal/model"
)

const (
	peersLine   = `{"level":"info","msg":"peers in store","peer_store_count":27,"network_peer_count":1340}`
	ringLine    = `{"level":"info","msg":"creating data shard ring proof","ring":1,"active_workers":16,"frame_number":1234,"frame_age":3.5}`
	submitLine  = `{"level":"info","msg":"submitting data proof","ring":1,"frame_age":7}`
	durableLine = `{"level":"info","msg":"completed duration proof","increment":4200,"time_taken":1.25}`
)

// countingLines yields newest first and records how many lines were handed out.
type countingLines struct {
	lines   []string
	yielded int
}

func (c *countingLines) seq() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := len(c.lines) - 1; i >= 0; i-- {
			c.yielded++
			if !yield(c.lines[i]) {
				return
			}
		}
	}
}

func newDefaultScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := NewScanner(DefaultSignals())
	require.NoError(t, err)
	return s
}

func TestScan_SharedMarkerSettlesSeveralSignals(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	lines := []string{
		"older unrelated line",
		`...peers in store..."peer_store_count":5,"network_peer_count":9...`,
	}

	res := s.Scan(Newest(lines), nil)

	assert.Equal(t, Value{Value: 5, Found: true}, res.Values["peer_store_count"])
	assert.Equal(t, Value{Value: 9, Found: true}, res.Values["network_peer_count"])
}

func TestScan_NewestOccurrenceWins(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	lines := []string{
		`{"msg":"peers in store","peer_store_count":1,"network_peer_count":2}`,
		"noise",
		`{"msg":"peers in store","peer_store_count":30,"network_peer_count":40}`,
	}

	res := s.Scan(Newest(lines), nil)

	assert.Equal(t, 30.0, res.Values["peer_store_count"].Value)
	assert.Equal(t, 40.0, res.Values["network_peer_count"].Value)
}

func TestScan_MissingMarkerKeepsDefault(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	res := s.Scan(Newest([]string{peersLine, durableLine}), nil)

	assert.False(t, res.Found("ring"))
	assert.Equal(t, -1.0, res.Values["ring"].Value)
	assert.False(t, res.Found("submitted_data_proof_age"))
	assert.Equal(t, 0.0, res.Values["submitted_data_proof_age"].Value)

	assert.True(t, res.Found("peer_store_count"))
	assert.True(t, res.Found("proof_increment"))
	assert.Equal(t, 1.25, res.Values["proof_time_taken"].Value)
	assert.False(t, res.Stopped)
	assert.Equal(t, 2, res.Inspected)
}

func TestScan_StopsOnceCoreSignalsFound(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	src := &countingLines{lines: []string{
		`{"msg":"peers in store","peer_store_count":1,"network_peer_count":1}`,
		`{"msg":"submitting data proof","frame_age":99}`,
		`{"msg":"creating data shard ring proof","ring":9,"active_workers":1,"frame_number":1,"frame_age":1}`,
		peersLine,
		ringLine,
		durableLine,
	}}

	res := s.Scan(src.seq(), nil)

	// Core signals are settled by the three newest lines (k = 2 from newest).
	assert.True(t, res.Stopped)
	assert.Equal(t, 3, res.Inspected)
	assert.Equal(t, 3, src.yielded)

	assert.Equal(t, 1.0, res.Values["ring"].Value)
	assert.Equal(t, 1234.0, res.Values["max_frame"].Value)
	assert.Equal(t, 27.0, res.Values["peer_store_count"].Value)
	assert.False(t, res.Found("submitted_data_proof_age"), "optional signal older than the stop point must not be read")
}

func TestScan_EmitStreamsEachSignalOnce(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	var order []string
	emitted := map[string]float64{}
	res := s.Scan(Newest([]string{peersLine, submitLine, ringLine, ringLine}), func(sig Signal, v float64) {
		order = append(order, sig.Name)
		emitted[sig.Metric] = v
	})

	assert.Equal(t, []string{"max_frame", "ring", "active_workers", "creating_data_proof_age", "submitted_data_proof_age", "peer_store_count", "network_peer_count"}, order)
	assert.Equal(t, 3.5, emitted[model.MetricCreatingDataProof])
	assert.Equal(t, 7.0, emitted[model.MetricSubmittedDataProof])
	assert.Equal(t, 16.0, emitted[model.MetricActiveWorkers])
	assert.Equal(t, 4, res.Inspected)
}

func TestScan_CountsParseMisses(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	res := s.Scan(Newest([]string{
		`{"msg":"peers in store","peerStoreCount":12}`,
		`{"msg":"peers in store","peerStoreCount":13}`,
	}), nil)

	assert.Equal(t, 2, res.Misses["peer_store_count"])
	assert.Equal(t, 2, res.Misses["network_peer_count"])
	assert.False(t, res.Found("peer_store_count"))
}

func TestScan_EmptyWindow(t *testing.T) {
	t.Parallel()

	s := newDefaultScanner(t)
	res := s.Scan(Newest(nil), nil)

	assert.Equal(t, 0, res.Inspected)
	assert.Len(t, res.Values, len(DefaultSignals()))
	for name, v := range res.Values {
		assert.False(t, v.Found, name)
	}
}

func TestScan_AlternateCaptureGroups(t *testing.T) {
	t.Parallel()

	s, err := NewScanner([]Signal{{
		Name:    "peer_store_count",
		Metric:  model.MetricPeerStoreCount,
		Marker:  "peers",
		Pattern: regexp.MustCompile(`"peer_store_count":(\d+)|"peerStoreCount":(\d+)`),
		Core:    true,
	}})
	require.NoError(t, err)

	res := s.Scan(Newest([]string{`peers {"peerStoreCount":12}`}), nil)
	assert.Equal(t, Value{Value: 12, Found: true}, res.Values["peer_store_count"])
	assert.True(t, res.Stopped)
}

func TestNewScanner_RejectsIncompleteSignals(t *testing.T) {
	t.Parallel()

	_, err := NewScanner(nil)
	assert.Error(t, err)

	_, err = NewScanner([]Signal{{Name: "x", Marker: "m"}})
	assert.Error(t, err)
}

func TestDefaultSignals(t *testing.T) {
	t.Parallel()

	signals := DefaultSignals()
	require.Len(t, signals, 9)

	core := map[string]bool{}
	for _, sig := range signals {
		assert.True(t, model.IsNodeMetric(sig.Metric), sig.Name)
		if sig.Core {
			core[sig.Name] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"peer_store_count":   true,
		"network_peer_count": true,
		"max_frame":          true,
		"ring":               true,
		"active_workers":     true,
		"proof_increment":    true,
	}, core)
}

func TestParseSchema_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "version: 1\n"},
		{"no marker", "signals:\n  - name: a\n    metric: quilibrium_ring\n    pattern: '(\\d+)'\n"},
		{"no group", "signals:\n  - name: a\n    metric: quilibrium_ring\n    marker: m\n    pattern: '\\d+'\n"},
		{"bad regex", "signals:\n  - name: a\n    metric: quilibrium_ring\n    marker: m\n    pattern: '(\\d+'\n"},
		{"unknown metric", "signals:\n  - name: a\n    metric: quilibrium_nope\n    marker: m\n    pattern: '(\\d+)'\n"},
		{"duplicate", "signals:\n  - name: a\n    metric: quilibrium_ring\n    marker: m\n    pattern: '(\\d+)'\n  - name: a\n    metric: quilibrium_ring\n    marker: m\n    pattern: '(\\d+)'\n"},
		{"not yaml", "signals: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSchema(t *testing.T) {
	t.Parallel()

	signals, err := LoadSchema("")
	require.NoError(t, err)
	assert.Len(t, signals, 9)

	path := filepath.Join(t.TempDir(), "signals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 3
signals:
  - name: ring
    metric: quilibrium_ring
    marker: ring proof
    pattern: '"prover_ring":(-?\d+)'
    core: true
    default: -1
    version: 3
`), 0o644))

	signals, err = LoadSchema(path)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 3, signals[0].Version)
	assert.Equal(t, -1.0, signals[0].Default)

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
