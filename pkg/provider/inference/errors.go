package inference

import (
	"errors"
	"fmt"
)

// ErrNoCredentials is returned by provider constructors when the configured
// credential list is empty. This is a startup-fatal configuration error.
var ErrNoCredentials = errors.New("inference: no credentials configured")

// ErrMediaUnsupported is returned by text-only providers when a request
// carries an attachment or file reference.
var ErrMediaUnsupported = errors.New("inference: provider does not support media input")

// TransientKind distinguishes the retryable failure classes.
type TransientKind string

const (
	// KindQuota covers rate-limit and quota-exhaustion responses. The caller
	// (or the provider's internal credential rotation) may retry with a
	// different credential.
	KindQuota TransientKind = "quota"

	// KindNetwork covers connection resets, DNS failures, and timeouts.
	KindNetwork TransientKind = "network"
)

// TransientError wraps a retryable failure. Once a provider's internal
// retry/rotation budget is exhausted it still surfaces as a TransientError;
// callers must treat it as terminal for that call and apply their
// documented fallback.
type TransientError struct {
	Kind TransientKind
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("inference: transient %s failure: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a non-retryable failure: malformed requests, content
// rejection, or processing failures reported by the service.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("inference: permanent failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a [TransientError].
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsQuota reports whether err is a quota-class transient failure.
func IsQuota(err error) bool {
	var te *TransientError
	return errors.As(err, &te) && te.Kind == KindQuota
}

// IsNetwork reports whether err is a network-class transient failure.
func IsNetwork(err error) bool {
	var te *TransientError
	return errors.As(err, &te) && te.Kind == KindNetwork
}
