package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorType classifies extraction failures that callers act on.
type ErrorType string

const (
	ErrorTypeDocumentUnreadable ErrorType = "DOCUMENT_UNREADABLE"
	ErrorTypeCredentialMissing  ErrorType = "CREDENTIAL_MISSING"
	ErrorTypeServiceUnavailable ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTypeMalformedResponse  ErrorType = "MALFORMED_RESPONSE"
)

// Error is a typed extraction error.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Type, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is checks.
var (
	ErrDocumentUnreadable = &Error{Type: ErrorTypeDocumentUnreadable, Message: "document unreadable"}
	ErrCredentialMissing  = &Error{Type: ErrorTypeCredentialMissing, Message: "credential missing"}
	ErrServiceUnavailable = &Error{Type: ErrorTypeServiceUnavailable, Message: "service unavailable"}
	ErrMalformedResponse  = &Error{Type: ErrorTypeMalformedResponse, Message: "malformed response"}
)

// ErrNoTransactionsFound is what callers report when every strategy came back empty.
var ErrNoTransactionsFound = errors.New("no transactions found in PDF; the document may not contain a recognizable table structure")

func NewDocumentUnreadable(message string, err error) *Error {
	return &Error{Type: ErrorTypeDocumentUnreadable, Message: message, Err: err}
}

func NewCredentialMissing(message string) *Error {
	return &Error{Type: ErrorTypeCredentialMissing, Message: message}
}

func NewServiceUnavailable(message string, err error) *Error {
	return &Error{Type: ErrorTypeServiceUnavailable, Message: message, Err: err}
}

func NewMalformedResponse(message string, err error) *Error {
	return &Error{Type: ErrorTypeMalformedResponse, Message: message, Err: err}
}

// TypeOf returns the ErrorType of the first *Error in err's chain, or "".
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// MaxErrorMessageLength bounds failure messages stored on jobs and runs.
const MaxErrorMessageLength = 1000

// TruncateMessage cuts s to at most limit runes.
func TruncateMessage(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
