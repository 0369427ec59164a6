package nodeprobe

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

type stubProbe struct {
	name  string
	rec   *model.StatusRecord
	err   error
	calls int
}

func (s *stubProbe) Name() string { return s.name }

func (s *stubProbe) Probe(context.Context) (*model.StatusRecord, error) {
	s.calls++
	return s.rec, s.err
}

func TestChain_FallsBackToNextProbe(t *testing.T) {
	t.Parallel()

	rpc := &stubProbe{name: "rpc", err: errs.Transport(errors.New("refused"), "GetNodeInfo")}
	exe := &stubProbe{name: "exec", rec: &model.StatusRecord{PeerID: "Qm1"}}

	c := NewChain(rpc, exe)
	rec, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Qm1", rec.PeerID)
	assert.Equal(t, 1, rpc.calls)
	assert.Equal(t, 1, exe.calls)
	assert.Equal(t, "auto(rpc,exec)", c.Name())
}

func TestChain_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	rpc := &stubProbe{name: "rpc", rec: &model.StatusRecord{PeerID: "Qm1"}}
	exe := &stubProbe{name: "exec"}

	_, err := NewChain(rpc, exe).Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, exe.calls)
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	rpc := &stubProbe{name: "rpc", err: errs.Transport(errors.New("refused"), "rpc")}
	exe := &stubProbe{name: "exec", err: errs.Process(errors.New("not found"), "exec")}

	_, err := NewChain(rpc, nil, exe).Probe(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProcess))

	_, err = NewChain().Probe(context.Background())
	assert.True(t, errors.Is(err, errs.ErrNoIdentity))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	rpc := &stubProbe{name: "rpc"}
	exe := &stubProbe{name: "exec"}

	p, err := Select("rpc", rpc, exe)
	require.NoError(t, err)
	assert.Same(t, rpc, p)

	p, err = Select(" EXEC ", rpc, exe)
	require.NoError(t, err)
	assert.Same(t, exe, p)

	p, err = Select("", rpc, exe)
	require.NoError(t, err)
	assert.Equal(t, "auto(rpc,exec)", p.Name())

	_, err = Select("grpc", rpc, exe)
	assert.Error(t, err)
}

func TestStaticHostname(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "box", StaticHostname("box")(context.Background()))
	assert.NotEmpty(t, DefaultHostname(context.Background()))
}
