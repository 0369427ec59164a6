package logsource

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
)

func foundAt(path string) func(string) (string, error) {
	return func(string) (string, error) { return path, nil }
}

func TestJournalArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		window time.Duration
		want   string
	}{
		{name: "one hour", window: time.Hour, want: "3600 seconds ago"},
		{name: "sub second rounds up", window: 200 * time.Millisecond, want: "1 seconds ago"},
		{name: "zero uses default", window: 0, want: "3600 seconds ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := JournalArgs("quilibrium", tt.window)
			assert.Equal(t, []string{"-u", "quilibrium", "--since", tt.want, "--no-pager", "-o", "cat"}, args)
		})
	}
}

func TestJournalRecent(t *testing.T) {
	t.Parallel()

	var gotName string
	var gotArgs []string
	j := NewJournal(JournalConfig{
		LookPath: foundAt("/usr/bin/journalctl"),
		Runner: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotName, gotArgs = name, args
			return []byte("first line\n\nsecond line\nthird line"), nil
		},
	})

	lines, err := j.Recent(context.Background(), "node", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line", "third line"}, lines)
	assert.Equal(t, "/usr/bin/journalctl", gotName)
	assert.Equal(t, []string{"-u", "node", "--since", "600 seconds ago", "--no-pager", "-o", "cat"}, gotArgs)
	assert.Equal(t, "journal", j.Name())
}

func TestJournalRecentKeepsLinesAfterOversizedLine(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", 2*maxJournalLine)
	newest := "Peers in store: 42"
	j := NewJournal(JournalConfig{
		LookPath: foundAt("journalctl"),
		Runner: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("old line\n" + huge + "\n" + newest + "\r\n"), nil
		},
	})

	lines, err := j.Recent(context.Background(), "quilibrium", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old line", newest}, lines)
}

func TestSplitLinesCountsOversized(t *testing.T) {
	t.Parallel()

	atLimit := strings.Repeat("a", maxJournalLine)
	lines, oversized := splitLines([]byte(atLimit + "\n" + atLimit + "b\n\nlast"))
	assert.Equal(t, []string{atLimit, "last"}, lines)
	assert.Equal(t, 1, oversized)
}

func TestJournalRecentEmptyServiceUsesDefault(t *testing.T) {
	t.Parallel()

	var gotArgs []string
	j := NewJournal(JournalConfig{
		LookPath: foundAt("journalctl"),
		Runner: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			gotArgs = args
			return nil, nil
		},
	})

	lines, err := j.Recent(context.Background(), "", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, "quilibrium", gotArgs[1])
}

func TestJournalRecentMissingBinary(t *testing.T) {
	t.Parallel()

	j := NewJournal(JournalConfig{
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
		Runner: func(context.Context, string, ...string) ([]byte, error) {
			t.Fatal("runner must not be called")
			return nil, nil
		},
	})

	_, err := j.Recent(context.Background(), "quilibrium", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProcess))
}

func TestJournalRecentCommandFails(t *testing.T) {
	t.Parallel()

	j := NewJournal(JournalConfig{
		LookPath: foundAt("journalctl"),
		Runner: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		},
	})

	_, err := j.Recent(context.Background(), "quilibrium", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProcess))
}

func TestJournalRecentTimeout(t *testing.T) {
	t.Parallel()

	j := NewJournal(JournalConfig{
		LookPath: foundAt("journalctl"),
		Timeout:  20 * time.Millisecond,
		Runner: func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	start := time.Now()
	_, err := j.Recent(context.Background(), "quilibrium", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProcess))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}
