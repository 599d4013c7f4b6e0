package errors

import "fmt"

var (
	ErrSelfMessage        = fmt.Errorf("cannot message yourself")
	ErrEmptyContent       = fmt.Errorf("message content is empty")
	ErrRecipientNotFound  = fmt.Errorf("recipient not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrSessionNotJoined   = fmt.Errorf("session is not joined to any group")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrNotMessageSide     = fmt.Errorf("user is neither sender nor recipient")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrSendBufferExceeded = fmt.Errorf("send buffer exceeded")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
