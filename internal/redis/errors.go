package redis

import "errors"

var (
	// ErrConfig reports a malformed URL, certificate or pool setting.
	ErrConfig = errors.New("redis config error")
	// ErrConnection reports a failed connection or round-trip.
	ErrConnection = errors.New("redis connection failure")
	// ErrIO reports an unreadable certificate file or temp file failure.
	ErrIO = errors.New("redis certificate io error")
)
