package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindBadRequest
	KindValidation
)

// Stable internal error codes returned to clients.
const (
	CodeAccessDenied      = "ML-000"
	CodeInvalidRequest    = "ML-001"
	CodeInvalidItemStatus = "ML-002"
	CodeItemNotFound      = "ML-101"
	CodeIllegalTransition = "ML-102"
	CodeAccountNotFound   = "ML-201"
	CodePurchaseNotFound  = "ML-301"
	CodeAuthentication    = "999"
	CodeInternal          = "ML-999"
)

var (
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrBadRequest   = errors.New("bad request")  // 400
	ErrValidation   = errors.New("validation")   // 422
)

var kindSentinels = map[Kind]error{
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindBadRequest:   ErrBadRequest,
	KindValidation:   ErrValidation,
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a domain failure with a stable code. It matches the kind sentinel
// above under errors.Is, so callers never compare codes to branch.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// As extracts the coded error from err, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the stable code carried by err, or CodeInternal.
func CodeOf(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeInternal
}

func AccessDenied() *Error {
	return &Error{Kind: KindForbidden, Code: CodeAccessDenied, Message: "Access Denied"}
}

func InvalidRequest(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidRequest, Message: "Invalid Request", Fields: fields}
}

func InvalidItemStatus(value string) *Error {
	return &Error{Kind: KindBadRequest, Code: CodeInvalidItemStatus, Message: fmt.Sprintf("Invalid Book Status [%s]", value)}
}

func ItemNotFound(id uint) *Error {
	return &Error{Kind: KindNotFound, Code: CodeItemNotFound, Message: fmt.Sprintf("Book [%d] not exists", id)}
}

func IllegalTransition(from string) *Error {
	return &Error{Kind: KindBadRequest, Code: CodeIllegalTransition, Message: fmt.Sprintf("Cannot update book with status [%s]", from)}
}

func AccountNotFound(id uint) *Error {
	return &Error{Kind: KindNotFound, Code: CodeAccountNotFound, Message: fmt.Sprintf("Customer [%d] not exists", id)}
}

func PurchaseNotFound(id uint) *Error {
	return &Error{Kind: KindNotFound, Code: CodePurchaseNotFound, Message: fmt.Sprintf("Purchase [%d] not exists", id)}
}

// Authentication hides the underlying cause from clients; err is kept for logs only.
func Authentication(message string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeAuthentication, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// ItemsNotAvailable rejects a purchase whose items are not all ACTIVE.
func ItemsNotAvailable() *Error {
	return InvalidRequest(FieldError{Field: "book_ids", Message: "Books not available for purchase"})
}

// EmailTaken reports a registration or update with an email already in use.
func EmailTaken() *Error {
	return InvalidRequest(FieldError{Field: "email", Message: "Email already in use"})
}
