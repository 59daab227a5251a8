package pose

import "errors"

var (
	// ErrUnknownLeg is returned when a leg id is not one of the four legs.
	ErrUnknownLeg = errors.New("unknown leg")

	// ErrDecode is returned when a snapshot payload is not valid JSON for a Snapshot.
	ErrDecode = errors.New("invalid snapshot payload")
)
