package exception

import "github.com/yanun0323/errors"

var (
	ErrSessionClosed         = errors.New("session: closed")
	ErrSessionNotActive      = errors.New("session: not active")
	ErrSessionQueueFull      = errors.New("session: outbound queue full")
	ErrSessionOrderQueueFull = errors.New("session: order queue full")
	ErrSessionProtocol       = errors.New("session: malformed message")
)
