package registry

import (
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/ir"
)

// ErrorCode categorizes a rejected registry operation.
type ErrorCode string

const (
	// CodeAuthentication indicates the caller credential could not be
	// resolved to an account.
	CodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"

	// CodeClaimTooLong indicates the claim exceeds the configured maximum length.
	CodeClaimTooLong ErrorCode = "CLAIM_TOO_LONG"

	// CodeProofAlreadyExist indicates Create on a claim that is already registered.
	CodeProofAlreadyExist ErrorCode = "PROOF_ALREADY_EXIST"

	// CodeClaimNotExist indicates Revoke or Transfer on an unregistered claim.
	CodeClaimNotExist ErrorCode = "CLAIM_NOT_EXIST"

	// CodeNotClaimOwner indicates Revoke or Transfer by someone other than the owner.
	CodeNotClaimOwner ErrorCode = "NOT_CLAIM_OWNER"

	// CodeInvalidAccount indicates a malformed transfer receiver.
	CodeInvalidAccount ErrorCode = "INVALID_ACCOUNT"
)

// Sentinels for errors.Is. Matching is by code, so a *Error carrying claim
// and caller details still matches the bare sentinel.
var (
	ErrAuthentication    = &Error{Code: CodeAuthentication, Message: "caller could not be authenticated"}
	ErrClaimTooLong      = &Error{Code: CodeClaimTooLong, Message: "claim exceeds maximum length"}
	ErrProofAlreadyExist = &Error{Code: CodeProofAlreadyExist, Message: "claim is already registered"}
	ErrClaimNotExist     = &Error{Code: CodeClaimNotExist, Message: "claim is not registered"}
	ErrNotClaimOwner     = &Error{Code: CodeNotClaimOwner, Message: "caller does not own the claim"}
	ErrInvalidAccount    = &Error{Code: CodeInvalidAccount, Message: "account id is malformed"}
)

// Error is a rejected registry operation. A rejected operation never
// changes the store and never emits an event.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Claim is the claim the operation targeted, when known.
	Claim ir.Claim

	// Caller is the resolved caller, when authentication succeeded.
	Caller ir.AccountID

	// Err is the underlying cause (e.g. the identity provider's error).
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Claim != nil {
		msg += fmt.Sprintf(" (claim=%s)", e.Claim)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the registry error code carried by err, or "" if err is
// not a registry rejection.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsRejection reports whether err is a registry rejection as opposed to an
// infrastructure failure (store I/O, cancelled context).
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

func newError(base *Error, claim ir.Claim, caller ir.AccountID, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Claim:   claim.Clone(),
		Caller:  caller,
		Err:     cause,
	}
}
