package resource

import (
	"errors"
	"fmt"
)

// ErrorCode is the structured error signature attached to failed results.
// Cloud client adapters translate raw provider errors into these codes at the
// boundary so that matching never depends on message wording.
type ErrorCode string

const (
	CodeTransient             ErrorCode = "Transient"
	CodePrincipalNotFound     ErrorCode = "PrincipalNotFound"
	CodeAuthorizationPending  ErrorCode = "AuthorizationPending"
	CodeResourceDeleting      ErrorCode = "ResourceDeleting"
	CodeThrottled             ErrorCode = "Throttled"
	CodeConflict              ErrorCode = "Conflict"
	CodeAlreadyExists         ErrorCode = "AlreadyExists"
	CodePolicyDenied          ErrorCode = "PolicyDenied"
	CodePolicyDeniedSharedKey ErrorCode = "PolicyDeniedSharedKey"
	CodeQuotaExceeded         ErrorCode = "QuotaExceeded"
	CodeNotFound              ErrorCode = "NotFound"
	CodeDrift                 ErrorCode = "Drift"
	CodeUnclassified          ErrorCode = "Unclassified"
)

// Category groups error codes into the taxonomy the pipeline acts on.
type Category string

const (
	CategoryTransient     Category = "Transient"
	CategoryConflict      Category = "Conflict"
	CategoryPolicyDenied  Category = "PolicyDenied"
	CategoryQuotaExceeded Category = "QuotaExceeded"
	CategoryNotFound      Category = "NotFound"
	CategoryUnclassified  Category = "Unclassified"
)

// Category maps the code onto the error taxonomy.
func (c ErrorCode) Category() Category {
	switch c {
	case CodeTransient, CodePrincipalNotFound, CodeAuthorizationPending, CodeResourceDeleting, CodeThrottled:
		return CategoryTransient
	case CodeConflict, CodeAlreadyExists:
		return CategoryConflict
	case CodePolicyDenied, CodePolicyDeniedSharedKey:
		return CategoryPolicyDenied
	case CodeQuotaExceeded:
		return CategoryQuotaExceeded
	case CodeNotFound:
		return CategoryNotFound
	default:
		return CategoryUnclassified
	}
}

// Signature is the structured code and message recorded for a failure.
type Signature struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (s Signature) String() string {
	if s.Message == "" {
		return string(s.Code)
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// Error is a classified cloud error.
type Error struct {
	Code    ErrorCode
	Message string
	Op      string
	Err     error
}

// NewError creates a classified error.
func NewError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(code ErrorCode, op string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Signature returns the structured signature of the error.
func (e *Error) Signature() Signature {
	return Signature{Code: e.Code, Message: e.Message}
}

// CodeOf returns the error code carried by err, or CodeUnclassified.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeUnclassified
}

// SignatureOf returns the structured signature for err. Errors that were never
// classified keep their verbatim text under CodeUnclassified.
func SignatureOf(err error) *Signature {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		sig := re.Signature()
		return &sig
	}
	return &Signature{Code: CodeUnclassified, Message: err.Error()}
}

// IsCode reports whether err carries one of the given codes.
func IsCode(err error, codes ...ErrorCode) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	for _, c := range codes {
		if re.Code == c {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err belongs to the Transient category.
func IsRetryable(err error) bool {
	return CodeOf(err).Category() == CategoryTransient
}

// IsPropagationDelay reports whether err is caused by identity or role
// assignment propagation lag.
func IsPropagationDelay(err error) bool {
	return IsCode(err, CodePrincipalNotFound, CodeAuthorizationPending)
}

// IsConflict reports whether err means the resource already exists.
func IsConflict(err error) bool {
	return CodeOf(err).Category() == CategoryConflict
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
