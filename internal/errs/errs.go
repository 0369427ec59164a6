// Package errs declares the failure classes shared by the probe, log and
// decode layers. Call sites mark wrapped errors with one of these classes so
// the collector can decide how far a failure propagates.
package errs

import "github.com/cockroachdb/errors"

var (
	// ErrTransport marks an unreachable RPC endpoint or a non-success status.
	ErrTransport = errors.New("transport failure")
	// ErrDecode marks a malformed encoded field.
	ErrDecode = errors.New("decode failure")
	// ErrProcess marks a missing executable, non-zero exit or expired subprocess.
	ErrProcess = errors.New("process failure")
	// ErrNoIdentity marks a probe that finished without a peer id.
	ErrNoIdentity = errors.New("no peer identity")
)

// Transport wraps err and marks it as a transport failure.
func Transport(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrTransport)
}

// Process wraps err and marks it as a process failure.
func Process(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrProcess)
}

// Decode wraps err and marks it as a decode failure.
func Decode(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDecode)
}

// Class returns a short name for the failure class of err, for log fields.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProcess):
		return "process"
	case errors.Is(err, ErrNoIdentity):
		return "identity"
	default:
		return "unknown"
	}
}
