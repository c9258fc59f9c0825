package purchase

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a session ended in Failed. Every kind is
// terminal for the session; a caller may start a fresh session after fixing
// the cause.
type FailureKind string

const (
	FailProtocol           FailureKind = "protocol_error"
	FailMalformedChallenge FailureKind = "malformed_challenge"
	FailBuilderUnavailable FailureKind = "builder_unavailable"
	FailBuilderRejected    FailureKind = "builder_rejected"
	FailSubmissionRejected FailureKind = "submission_rejected"
	FailPaymentRejected    FailureKind = "payment_rejected"
	FailSettlementFailed   FailureKind = "settlement_failed"
	FailTimeout            FailureKind = "timeout"
	FailCanceled           FailureKind = "canceled"
)

// SessionError is the terminal error of a purchase session: the failure kind,
// the state the machine failed in, and the underlying cause.
type SessionError struct {
	Kind  FailureKind
	State State
	Err   error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("purchase failed in state %s: %s", e.State, e.Kind)
	}
	return fmt.Sprintf("purchase failed in state %s: %s: %v", e.State, e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func failed(kind FailureKind, state State, err error) *SessionError {
	return &SessionError{Kind: kind, State: state, Err: err}
}

// KindOf extracts the failure kind from a session error chain; empty when
// err is not a session failure.
func KindOf(err error) FailureKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
