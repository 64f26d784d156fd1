// Package derrors defines the domain error type shared across services.
//
// Services return these errors from their public methods; the HTTP layer
// translates them into status codes and the standard JSON error envelope.
// Stores do NOT return domain errors. They return sentinel errors
// (pkg/platform/sentinel) and services translate.
//
// Construction:
//
//	derrors.New(derrors.CodeValidation, "gross_margin must be between 0 and 1")
//	derrors.Wrap(err, derrors.CodeInternal, "failed to load policy")
//
// Inspection:
//
//	if derrors.HasCode(err, derrors.CodeNotFound) { ... }
package derrors

import "errors"

// Code classifies a domain error. The string value is the wire-level
// error code written into JSON error envelopes, so values are stable API.
type Code string

const (
	// CodeValidation marks request payloads that fail field validation.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput marks semantically malformed values (unparseable IDs,
	// unknown enum members) discovered after decoding.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks structurally broken requests (unreadable body,
	// missing required parameters).
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or unverifiable credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authenticated callers lacking permission.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks requests for entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodePolicyNotFound marks evaluations for which no active scoring
	// policy is configured. Distinct from CodeNotFound so API clients can
	// tell a missing policy from a missing resource.
	CodePolicyNotFound Code = "policy_not_found"
	// CodeConflict marks writes that lose to a concurrent or duplicate write.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks aggregate state transitions the domain
	// model refuses. Services translate these into CodeConflict before they
	// reach a client; a leaked invariant violation is a bug.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeRateLimited marks requests rejected by rate limiting.
	CodeRateLimited Code = "rate_limited"
	// CodeTimeout marks operations that ran out of time against a dependency.
	CodeTimeout Code = "timeout"
	// CodeInternal marks unexpected failures. Details are logged, never
	// returned to clients.
	CodeInternal Code = "internal_error"
)

// Error is the concrete domain error. Callers outside this package should
// use New/Wrap/HasCode rather than constructing or asserting it directly.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is treat domain errors with equal code and message as
// equivalent, so tests can assert errors.Is(err, derrors.New(code, msg)).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code && e.Message == te.Message
}

// New creates a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates err with a domain code and message. Returns nil if err is nil
// so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any domain error in its chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Unwrap()
	}
	return false
}

// Is is an alias for HasCode. Reads better in test assertions.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when err carries no domain error. Used by the HTTP layer to
// pick a status and wire code for arbitrary errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error, or an empty
// string when err carries no domain error. Internal errors deliberately
// return empty so their details never leak into responses.
func MessageOf(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return ""
	}
	if de.Code == CodeInternal || de.Code == CodeInvariantViolation {
		return ""
	}
	return de.Message
}

// ToHTTPStatus maps a domain error code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound, CodePolicyNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeRateLimited:
		return 429
	case CodeTimeout:
		return 504
	default:
		return 500
	}
}
