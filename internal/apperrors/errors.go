// Package apperrors provides the closed error taxonomy for notify-push
// sessions and ingest, following the code+message shape of the teacher's
// internal/errors.AppError but scoped to the errors named in the
// specification rather than generic HTTP error codes.
package apperrors

import "fmt"

// Code identifies one of the specified error kinds.
type Code string

const (
	AuthTimeout        Code = "AUTH_TIMEOUT"
	InvalidCredentials Code = "INVALID_CREDENTIALS"
	LimitExceeded      Code = "LIMIT_EXCEEDED"
	SocketProtocol     Code = "SOCKET_PROTOCOL"
	BusTransient       Code = "BUS_TRANSIENT"
	MappingLookup      Code = "MAPPING_LOOKUP"
)

// SessionError is an error that carries the exact text a WebSocket client
// should see in the "err: <message>" / timeout / limit frame.
type SessionError struct {
	Code    Code
	Message string
}

func (e *SessionError) Error() string {
	return e.Message
}

// New creates a SessionError with the given code and wire message.
func New(code Code, message string) *SessionError {
	return &SessionError{Code: code, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting of the message.
func Newf(code Code, format string, args ...interface{}) *SessionError {
	return &SessionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidCredentials = New(InvalidCredentials, "Invalid credentials")
	ErrLimitExceeded      = New(LimitExceeded, "connection limit exceeded")
	ErrAuthTimeout        = New(AuthTimeout, "Authentication timeout")
)
