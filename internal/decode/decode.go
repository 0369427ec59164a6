// Package decode turns the node's opaque encoded numeric fields into values.
//
// Balances and seniority travel as base64 of a big-endian integer. Newer node
// builds front-pad the buffer, so only the trailing 8 bytes are significant.
package decode

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"

	"github.com/tinytelemetry/quil-exporter/internal/errs"
)

// TokenUnit is the number of raw token units in one QUIL (0x1DCD65000).
const TokenUnit = 0x1DCD65000

const balancePrecision = 34

var (
	decimalCtx = apd.BaseContext.WithPrecision(balancePrecision)
	tokenUnit  = apd.New(TokenUnit, 0)
)

// DecodeVarintBalance base64-decodes encoded and reads its last 8 bytes as a
// big-endian uint64. Shorter buffers are read as if left-padded with zeros.
func DecodeVarintBalance(encoded string) (uint64, error) {
	s := strings.TrimSpace(encoded)
	if s == "" {
		return 0, errs.Decode(errors.New("empty value"), "decode %q", encoded)
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// grpc-gateway emits padded output, hand-built fixtures sometimes don't.
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return 0, errs.Decode(err, "decode %q", encoded)
		}
	}
	if len(raw) == 0 {
		return 0, errs.Decode(errors.New("empty buffer"), "decode %q", encoded)
	}

	var buf [8]byte
	if len(raw) >= 8 {
		copy(buf[:], raw[len(raw)-8:])
	} else {
		copy(buf[8-len(raw):], raw)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// TokensToBalance converts raw token units to a QUIL balance using exact
// decimal division. A zero amount yields zero.
func TokensToBalance(raw uint64) *apd.Decimal {
	if raw == 0 {
		return apd.New(0, 0)
	}

	var coeff apd.BigInt
	coeff.SetUint64(raw)
	amount := apd.NewWithBigInt(&coeff, 0)

	out := new(apd.Decimal)
	if _, err := decimalCtx.Quo(out, amount, tokenUnit); err != nil {
		// Quo only fails on a zero divisor or an exponent overflow, neither of
		// which a uint64 numerator over a fixed unit can produce.
		return apd.New(0, 0)
	}
	out.Reduce(out)
	return out
}

// ParseBalance parses a decimal balance as printed by the node CLI.
func ParseBalance(text string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return nil, errs.Decode(err, "parse balance %q", text)
	}
	if d.Negative {
		return apd.New(0, 0), nil
	}
	return d, nil
}

// Float converts d for gauge export. Nil reads as zero.
func Float(d *apd.Decimal) float64 {
	if d == nil {
		return 0
	}
	f, err := d.Float64()
	if err != nil {
		return 0
	}
	return f
}
