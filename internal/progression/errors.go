package progression

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine error for the transport layer
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindConflict   Kind = "CONFLICT"
	KindState      Kind = "STATE_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindUpstream   Kind = "UPSTREAM_ERROR"
)

// Error is a structured engine error. Two errors match under errors.Is when their codes match.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the status code the API should answer with
func (e *Error) HTTPStatus() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

// WithCause returns a copy of e carrying the underlying error
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of e with a more specific message
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrAccountNotFound = &Error{Kind: KindState, Code: "account_not_found",
		Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrInvalidDelta = &Error{Kind: KindState, Code: "invalid_delta",
		Message: "Points delta is not allowed"}
	ErrChallengeLocked = &Error{Kind: KindState, Code: "challenge_locked",
		Message: "Challenge is locked. Earn more points to unlock!", StatusCode: http.StatusForbidden}
	ErrEmptySubmission = &Error{Kind: KindState, Code: "empty_submission",
		Message: "At least one answer is required", StatusCode: http.StatusBadRequest}

	ErrChallengeNotFound    = &Error{Kind: KindNotFound, Code: "challenge_not_found", Message: "Challenge not found"}
	ErrSubmissionNotFound   = &Error{Kind: KindNotFound, Code: "submission_not_found", Message: "Submission not found"}
	ErrNotificationNotFound = &Error{Kind: KindNotFound, Code: "notification_not_found", Message: "Notification not found"}

	ErrDuplicateSubmission = &Error{Kind: KindConflict, Code: "duplicate_submission",
		Message: "You have already submitted proof for this challenge"}
	ErrEmailTaken    = &Error{Kind: KindConflict, Code: "email_taken", Message: "Email already registered"}
	ErrUsernameTaken = &Error{Kind: KindConflict, Code: "username_taken", Message: "Username already taken"}

	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "Invalid email or password"}

	ErrInvalidInput = &Error{Kind: KindValidation, Code: "invalid_input", Message: "Invalid request"}
	ErrInvalidProof = &Error{Kind: KindValidation, Code: "invalid_proof", Message: "Proof image is invalid"}

	ErrUpstream = &Error{Kind: KindUpstream, Code: "upstream_unavailable", Message: "Service temporarily unavailable"}
)

// Validation builds a validation error with a specific message
func Validation(format string, args ...any) *Error {
	return ErrInvalidInput.WithMessage(format, args...)
}

// Upstream wraps a storage or blob failure that survived the retry budget
func Upstream(cause error) error {
	var appErr *Error
	if errors.As(cause, &appErr) {
		return cause
	}
	return ErrUpstream.WithCause(cause)
}

// AsError extracts the engine error from err, if any
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
