package protocol

import "errors"

var (
	// ErrMalformed is returned when an envelope or its payload cannot be decoded.
	ErrMalformed = errors.New("malformed command")

	// ErrUnknownKind is returned for a discriminant this version does not understand.
	ErrUnknownKind = errors.New("unknown command kind")
)
