package msa

import (
	"fmt"
)

// Kind classifies why a login flow failed.
type Kind int

const (
	// KindTransport is a network/IO failure: DNS, refused connection, no
	// response at all. Anything that produced a response body is not transport.
	KindTransport Kind = iota
	// KindProvider is a well-formed error response from one of the services,
	// carrying the provider's raw code and message.
	KindProvider
	// KindNotEntitled means the account authenticated fine but does not own
	// the game.
	KindNotEntitled
	// KindExpired means the device code's deadline passed before the user
	// authorized it.
	KindExpired
	// KindCancelled means the user dismissed the authorization prompt.
	KindCancelled
	// KindInvalidCache means a cached credential failed validation. Never
	// surfaced to the user as a failure; it triggers the refresh/full-flow
	// fallback instead.
	KindInvalidCache
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProvider:
		return "provider"
	case KindNotEntitled:
		return "not entitled"
	case KindExpired:
		return "expired"
	case KindCancelled:
		return "cancelled"
	case KindInvalidCache:
		return "invalid cache"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FlowError is the terminal failure of a login flow or one of its stages.
type FlowError struct {
	Kind    Kind
	Stage   string // which stage failed, e.g. "xsts token"
	Code    int64  // provider numeric error code (XErr), 0 if none
	Message string // provider error message, if any
	Err     error  // underlying cause, if any
}

func (e *FlowError) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Stage, e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FlowError) Unwrap() error { return e.Err }

// Is makes errors.Is match on the failure kind, so callers can compare
// against e.g. &FlowError{Kind: KindCancelled}.
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

func transportErr(stage string, err error) *FlowError {
	return &FlowError{Kind: KindTransport, Stage: stage, Err: err}
}

func providerErr(stage, message string, err error) *FlowError {
	return &FlowError{Kind: KindProvider, Stage: stage, Message: message, Err: err}
}

// Well-known XSTS error codes. These are the primary diagnostic signal when
// the Xbox security token service refuses an account, so they are surfaced
// raw alongside the hint.
var xerrHints = map[int64]string{
	2148916233: "this Microsoft account has no Xbox profile",
	2148916235: "Xbox Live is not available in this account's region",
	2148916236: "the account needs adult verification on the Xbox page",
	2148916237: "the account needs adult verification on the Xbox page",
	2148916238: "the account belongs to a minor and must be added to a family",
}

// XErrHint returns a human-readable explanation for a well-known XSTS error
// code, or "" if the code is not recognized.
func XErrHint(code int64) string {
	return xerrHints[code]
}
