// Package domainerrors carries typed error codes from domain logic to the
// transport edge. Services return these; handlers translate the code into an
// HTTP or gRPC status without inspecting messages.
//
// Infrastructure facts (not found, conflict) live in pkg/platform/sentinel and
// are translated into a Code by the service that observes them.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"

	// Vault policy outcomes.
	CodeContractNotAllowed Code = "contract_not_allowed"
	CodeAmountExceedsLimit Code = "amount_exceeds_limit"
	CodeInvalidMode        Code = "invalid_mode"
)

// Error is a coded domain error. Err is the optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
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

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
// Wrapping a nil error returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Message returns the client-safe message of the outermost domain error.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// VaultCode returns the numeric vault error code for the four policy outcomes
// (Unauthorized=1, ContractNotAllowed=2, AmountExceedsLimit=3, InvalidMode=4).
// Other codes have no numeric form.
func VaultCode(code Code) (uint16, bool) {
	switch code {
	case CodeUnauthorized:
		return 1, true
	case CodeContractNotAllowed:
		return 2, true
	case CodeAmountExceedsLimit:
		return 3, true
	case CodeInvalidMode:
		return 4, true
	default:
		return 0, false
	}
}

// FromVaultCode is the inverse of VaultCode.
func FromVaultCode(n uint16) (Code, bool) {
	switch n {
	case 1:
		return CodeUnauthorized, true
	case 2:
		return CodeContractNotAllowed, true
	case 3:
		return CodeAmountExceedsLimit, true
	case 4:
		return CodeInvalidMode, true
	default:
		return "", false
	}
}
