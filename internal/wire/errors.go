// Package wire implements the NRSH v1 framing codec and payload dialects.
package wire

// ErrKind enumerates the distinct, enumerable rejection reasons a decode
// can produce. Framing and payload errors on the receive path are logged
// and the offending packet dropped; they never tear down an endpoint.
type ErrKind int

const (
	ErrShortPacket ErrKind = iota
	ErrBadMagic
	ErrBadVersion
	ErrUnknownMsgType
	ErrLengthMismatch
	ErrChecksumMismatch
	ErrMalformedPayload
	ErrDecompressionFailed
	ErrUnknownSender
	ErrCapacityExceeded
	ErrRetryBudgetExhausted
	ErrStaleSnapshot
	ErrDuplicateSnapshot
)

func (k ErrKind) String() string {
	switch k {
	case ErrShortPacket:
		return "ShortPacket"
	case ErrBadMagic:
		return "BadMagic"
	case ErrBadVersion:
		return "BadVersion"
	case ErrUnknownMsgType:
		return "UnknownMsgType"
	case ErrLengthMismatch:
		return "LengthMismatch"
	case ErrChecksumMismatch:
		return "ChecksumMismatch"
	case ErrMalformedPayload:
		return "MalformedPayload"
	case ErrDecompressionFailed:
		return "DecompressionFailed"
	case ErrUnknownSender:
		return "UnknownSender"
	case ErrCapacityExceeded:
		return "CapacityExceeded"
	case ErrRetryBudgetExhausted:
		return "RetryBudgetExhausted"
	case ErrStaleSnapshot:
		return "StaleSnapshot"
	case ErrDuplicateSnapshot:
		return "DuplicateSnapshot"
	default:
		return "Unknown"
	}
}

// Error is the enumerable error kind carried across the receive path.
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func newErr(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}
