package decode

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
)

func encodeUint64(v uint64, pad int) string {
	buf := make([]byte, pad+8)
	for i := 0; i < pad; i++ {
		buf[i] = 0xff
	}
	binary.BigEndian.PutUint64(buf[pad:], v)
	return base64.StdEncoding.EncodeToString(buf)
}

func TestDecodeVarintBalance_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 15_400_000_000, 1<<63 + 12345, ^uint64(0)} {
		got, err := DecodeVarintBalance(encodeUint64(v, 0))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeVarintBalance_IgnoresLeadingBytes(t *testing.T) {
	t.Parallel()

	got, err := DecodeVarintBalance(encodeUint64(42, 24))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
}

func TestDecodeVarintBalance_ShortBuffer(t *testing.T) {
	t.Parallel()

	got, err := DecodeVarintBalance(base64.StdEncoding.EncodeToString([]byte{0x01, 0x00}))
	require.NoError(t, err)
	assert.Equal(t, uint64(256), got)
}

func TestDecodeVarintBalance_Unpadded(t *testing.T) {
	t.Parallel()

	enc := base64.RawStdEncoding.EncodeToString([]byte{0, 0, 0, 0, 0, 0, 0, 7})
	got, err := DecodeVarintBalance(enc)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)
}

func TestDecodeVarintBalance_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "!!not-base64!!", "@@@@"} {
		_, err := DecodeVarintBalance(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, errs.ErrDecode), "input %q", in)
	}
}

func TestTokensToBalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  uint64
		want string
	}{
		{0, "0"},
		{7_700_000_000, "1"},
		{15_400_000_000, "2"},
		{3_850_000_000, "0.5"},
		{1, "1.298701298701298701298701298701299E-10"},
	}
	for _, tt := range tests {
		want, _, err := apd.NewFromString(tt.want)
		require.NoError(t, err)
		got := TokensToBalance(tt.raw)
		assert.Zero(t, got.Cmp(want), "TokensToBalance(%d) = %s, want %s", tt.raw, got, tt.want)
	}
}

func TestTokensToBalance_ExactOne(t *testing.T) {
	t.Parallel()

	got := TokensToBalance(TokenUnit)
	assert.Equal(t, "1", got.String())
	assert.Equal(t, 1.0, Float(got))
}

func TestParseBalance(t *testing.T) {
	t.Parallel()

	d, err := ParseBalance(" 12.500000000000 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, Float(d))

	d, err = ParseBalance("-3")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseBalance("twelve")
	assert.True(t, errors.Is(err, errs.ErrDecode))
}

func TestFloatNil(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Float(nil))
}
