package command

import "errors"

// ErrRejected is returned when the device answers a command with a non-2xx status.
var ErrRejected = errors.New("device rejected command")
