package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBotNotActive      = errors.New("bot is not active")
	ErrPoolStopped       = errors.New("bot pool is stopped")
	ErrRateLimited       = errors.New("send rate limit exceeded")
	ErrStoreUnavailable  = errors.New("credential store unavailable")
	ErrInvalidCredential = errors.New("invalid bot credential")
	ErrTransportFailure  = errors.New("transport failure")
	ErrFeedDisconnected  = errors.New("change feed disconnected")
	ErrMalformedEvent    = errors.New("malformed change feed event")
)
