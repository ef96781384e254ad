// Package syncerror classifies audience sync failures as retryable or permanent
package syncerror

import (
	"errors"
	"fmt"
)

// Kind drives the caller's redelivery policy.
type Kind int

const (
	KindNone Kind = iota
	KindRetryable
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindPermanent:
		return "permanent"
	default:
		return "none"
	}
}

// Error codes shared by services and flows
const (
	CodeTokenIssuanceFailed        = "TOKEN_ISSUANCE_FAILED"
	CodePlatformUnreachable        = "PLATFORM_UNREACHABLE"
	CodeInvalidAdvertiserID        = "INVALID_ADVERTISER_ID"
	CodeInvalidAudienceID          = "INVALID_AUDIENCE_ID"
	CodeAudienceNameRequired       = "AUDIENCE_NAME_REQUIRED"
	CodeInvalidOperation           = "INVALID_OPERATION"
	CodeAudienceListFailed         = "AUDIENCE_LIST_FAILED"
	CodeAudienceCreateRejected     = "AUDIENCE_CREATE_REJECTED"
	CodeAudienceConflictUnresolved = "AUDIENCE_CONFLICT_UNRESOLVED"
	CodeContactlistPatchRejected   = "CONTACTLIST_PATCH_REJECTED"
	CodeMalformedResponse          = "MALFORMED_PLATFORM_RESPONSE"
)

// Error carries the kind of a failure together with the offending field when known.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Field      string
	Value      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Retryable(code, message string, err error) *Error {
	return &Error{Kind: KindRetryable, Code: code, Message: message, Err: err}
}

func Permanent(code, message string, err error) *Error {
	return &Error{Kind: KindPermanent, Code: code, Message: message, Err: err}
}

// InvalidField builds a permanent validation error that names the field and its value.
func InvalidField(code, field, value, reason string) *Error {
	return &Error{
		Kind:    KindPermanent,
		Code:    code,
		Message: fmt.Sprintf("%s %s (got %q)", field, reason, value),
		Field:   field,
		Value:   value,
	}
}

// FromStatus reports a non-success platform response.
func FromStatus(kind Kind, code, op string, status int, body string) *Error {
	msg := fmt.Sprintf("%s http status: %d", op, status)
	if body != "" {
		msg = fmt.Sprintf("%s, body: %s", msg, body)
	}
	return &Error{Kind: kind, Code: code, Message: msg, StatusCode: status}
}

// KindOf returns the kind of the first classified error in the chain.
// Transport failures, timeouts and other unclassified errors are retryable.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var se *Error
	if errors.As(err, &se) && se.Kind != KindNone {
		return se.Kind
	}
	return KindRetryable
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}

func IsPermanent(err error) bool {
	return KindOf(err) == KindPermanent
}

// CodeOf returns the code of the first classified error in the chain, or "" when none.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// As extracts the first classified error in the chain.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
