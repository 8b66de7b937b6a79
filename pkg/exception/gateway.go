package exception

import "github.com/yanun0323/errors"

var (
	ErrGatewayRequestFailed     = errors.New("gateway: request reported failure status")
	ErrGatewayQuotaExhausted    = errors.New("gateway: request quota exhausted")
	ErrGatewayUnsupportedAction = errors.New("gateway: unsupported order action")
	ErrGatewayDisconnected      = errors.New("gateway: disconnected")
)
