package exception

import "github.com/yanun0323/errors"

var (
	ErrAuthBadCredentials = errors.New("auth: bad credentials")
	ErrAuthUnknownUser    = errors.New("auth: unknown user")
)
