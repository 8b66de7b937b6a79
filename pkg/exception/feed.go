package exception

import "github.com/yanun0323/errors"

var (
	ErrFeedInvalidRequest  = errors.New("feed: invalid request")
	ErrFeedQuotaExhausted  = errors.New("feed: subscription quota exhausted")
	ErrFeedUpstreamRefused = errors.New("feed: upstream refused subscription")
)
