// Package errs defines the classified error taxonomy shared by every
// component of the fleet runtime. Every failed operation exposed across an
// API boundary returns an *Error carrying a Kind, so callers can branch on
// the failure class without parsing message strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy entries the runtime
// produces. See the component responsible for each kind in DESIGN.md.
type Kind string

const (
	KindConfig             Kind = "config"
	KindConnect            Kind = "connect"
	KindTopology           Kind = "topology"
	KindPublish            Kind = "publish"
	KindDeliveryValidation Kind = "delivery_validation"
	KindHandlerTransient   Kind = "handler_transient"
	KindHandlerPermanent   Kind = "handler_permanent"
	KindVoteNotFound       Kind = "vote_not_found"
	KindVoteSessionClosed  Kind = "vote_session_closed"
	KindVoteDeadlinePassed Kind = "vote_deadline_passed"
	KindVoteInvalidBallot  Kind = "vote_invalid_ballot"
	KindVoteQuorumFailed   Kind = "vote_quorum_failed"
	KindIntegrity          Kind = "integrity"
	KindCancelled          Kind = "cancelled"
)

// Error is the classified, wrapped error type returned across every
// exposed operation in this module.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "broker.Client.Connect"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, errs.New(KindConnect, "", nil)) style checks, and also
// lets errors.Is unwrap to the underlying cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs a classified error.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Wrap is a convenience for New when the cause's Kind should be inherited
// if it is already a classified error, defaulting to kind otherwise.
func Wrap(kind Kind, op string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		return &Error{Kind: existing.Kind, Op: op, Err: cause}
	}
	return New(kind, op, cause)
}

// KindOf extracts the Kind of err if it is (or wraps) a classified Error,
// and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
