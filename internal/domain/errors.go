package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers that only care about the broad category.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthorization
	KindState
	KindValidation
	KindArithmetic
	KindNotFound
	KindConflict
	KindRateLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Error is a typed engine failure. Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    string
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is enables errors.Is matching on Error codes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying additional detail in its message.
func (e *Error) With(format string, args ...any) *Error {
	return &Error{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
	}
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// Authorization
var (
	ErrUnauthorized   = newError(KindAuthorization, "Unauthorized", "not authorized")
	ErrNotVerified    = newError(KindAuthorization, "NotVerified", "account not verified")
	ErrInvalidAccount = newError(KindAuthorization, "InvalidAccount", "record does not belong to account")

	ErrInvalidSignature = newError(KindAuthorization, "InvalidSignature", "invalid document signature")
	ErrDocumentExpired  = newError(KindAuthorization, "DocumentExpired", "document outside replay window")
)

// State
var (
	ErrInvalidContentStatus   = newError(KindState, "InvalidContentStatus", "invalid content status for operation")
	ErrContentInTerminalState = newError(KindState, "ContentInTerminalState", "content is in terminal state")
	ErrInvalidStateTransition = newError(KindState, "InvalidStateTransition", "invalid state transition")
	ErrAlreadyApproved        = newError(KindState, "AlreadyApproved", "content already approved by this admin")
	ErrApprovalCapReached     = newError(KindState, "ApprovalCapReached", "approval count already at cap")
	ErrAlreadyVerified        = newError(KindState, "AlreadyVerified", "account already verified")
)

// Validation
var (
	ErrAlreadyExists            = newError(KindValidation, "AlreadyExists", "member already exists")
	ErrDoesNotExist             = newError(KindValidation, "DoesNotExist", "member does not exist")
	ErrCannotRemoveLast         = newError(KindValidation, "CannotRemoveLast", "cannot remove last admin")
	ErrCapacityExceeded         = newError(KindValidation, "CapacityExceeded", "member list is full")
	ErrInvalidScheduleTime      = newError(KindValidation, "InvalidScheduleTime", "invalid scheduling time")
	ErrScheduleTimeInPast       = newError(KindValidation, "ScheduleTimeInPast", "schedule time in past")
	ErrReasonTooLong            = newError(KindValidation, "ReasonTooLong", "reason too long")
	ErrThreadTooLong            = newError(KindValidation, "ThreadTooLong", "thread too long")
	ErrInvalidContentKind       = newError(KindValidation, "InvalidContentKind", "invalid content kind")
	ErrInvalidContentHash       = newError(KindValidation, "InvalidContentHash", "invalid content hash")
	ErrInvalidRequiredApprovals = newError(KindValidation, "InvalidRequiredApprovals", "invalid required approvals")
	ErrInvalidHandle            = newError(KindValidation, "InvalidHandle", "invalid handle format")
	ErrInvalidExternalID        = newError(KindValidation, "InvalidExternalID", "invalid external id format")
	ErrInvalidAddress           = newError(KindValidation, "InvalidAddress", "invalid address")
	ErrInvalidDocument          = newError(KindValidation, "InvalidDocument", "malformed operation document")
	ErrUnknownOperation         = newError(KindValidation, "UnknownOperation", "unknown operation type")
)

// Arithmetic
var (
	ErrScheduleOverflow = newError(KindArithmetic, "ScheduleOverflow", "timestamp overflow computing schedule bound")
)

// Conflict
var (
	ErrAlreadyRegistered = newError(KindConflict, "AlreadyRegistered", "account already registered")
	ErrReplayedDocument  = newError(KindConflict, "ReplayedDocument", "document already committed")
	ErrContentExists     = newError(KindConflict, "ContentExists", "content already exists")
)

// RateLimit
var (
	ErrTooManyRequests = newError(KindRateLimit, "TooManyRequests", "too many requests")
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// KindOf reports the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var nf NotFoundError
	if errors.As(err, &nf) {
		return KindNotFound
	}
	return KindUnknown
}
