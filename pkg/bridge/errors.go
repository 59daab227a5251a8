package bridge

import "errors"

var (
	// ErrUnknownJoint is returned when a plant refers to a joint the
	// kinematics registry does not know.
	ErrUnknownJoint = errors.New("unknown joint handle")

	// ErrUnknownBody is returned when a plant refers to a body the
	// kinematics registry does not know.
	ErrUnknownBody = errors.New("unknown body handle")
)
