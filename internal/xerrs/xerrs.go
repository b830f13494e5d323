// Package xerrs defines the bridge's error taxonomy.
//
// Every lifecycle error that crosses a component boundary is one of the
// five kinds below, wrapped with github.com/pkg/errors so that the original
// cause survives errors.Cause/errors.Is while the call site only needs to
// branch on the kind.
package xerrs

import "github.com/pkg/errors"

// Kind identifies which of the five recoverable-or-fatal error classes an
// error belongs to.
type Kind int

const (
	// DeviceUnavailable: adapter not present, permissions denied, or cannot
	// enter monitor mode.
	DeviceUnavailable Kind = iota
	// XLinkUnavailable: handshake timeout or socket bind failure.
	XLinkUnavailable
	// MalformedFrame: structural mismatch during conversion.
	MalformedFrame
	// ProtocolViolation: unknown or corrupt XLink tag.
	ProtocolViolation
	// Fatal: unrecoverable resource failure (e.g. goroutine spawn).
	Fatal
)

func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "DeviceUnavailable"
	case XLinkUnavailable:
		return "XLinkUnavailable"
	case MalformedFrame:
		return "MalformedFrame"
	case ProtocolViolation:
		return "ProtocolViolation"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

type kindErr struct {
	kind Kind
	err  error
}

func (e *kindErr) Error() string { return e.kind.String() + ": " + e.err.Error() }
func (e *kindErr) Unwrap() error { return e.err }

// New wraps msg as a new error of kind.
func New(kind Kind, msg string) error {
	return &kindErr{kind: kind, err: errors.New(msg)}
}

// Wrap wraps cause as an error of kind, adding msg as context.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &kindErr{kind: kind, err: errors.WithMessage(cause, msg)}
}

// Is reports whether err (or anything it wraps) is of kind.
func Is(err error, kind Kind) bool {
	var ke *kindErr
	for err != nil {
		if k, ok := err.(*kindErr); ok {
			ke = k
			break
		}
		err = errors.Unwrap(err)
	}
	return ke != nil && ke.kind == kind
}

// KindOf returns the Kind of err, and false if err is not (or does not
// wrap) a kindErr.
func KindOf(err error) (Kind, bool) {
	var ke *kindErr
	for err != nil {
		if k, ok := err.(*kindErr); ok {
			ke = k
			break
		}
		err = errors.Unwrap(err)
	}
	if ke == nil {
		return 0, false
	}
	return ke.kind, true
}
