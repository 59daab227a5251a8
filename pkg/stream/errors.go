package stream

import "errors"

var (
	// ErrDecode is returned when an event payload is not a valid snapshot and
	// the client was configured to stop on decode errors.
	ErrDecode = errors.New("failed to decode snapshot event")

	// ErrStatus is returned when the device answers the subscription with a
	// non-200 status.
	ErrStatus = errors.New("unexpected status from device")

	// ErrReconnectExhausted is returned when the reconnect budget is spent.
	ErrReconnectExhausted = errors.New("max reconnection attempts exceeded")
)
