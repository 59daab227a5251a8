// Package pose defines the posture of a four-legged device: a body
// orientation plus one shoulder/arm/wrist joint triplet per leg.
//
// Snapshots are plain values. Copying a Snapshot copies the whole pose, so a
// snapshot handed to another goroutine can never be observed half-updated.
package pose

import (
	"encoding/json"
	"fmt"
	"math"
)

// Joints holds the three revolute joint angles of one leg, in radians.
type Joints struct {
	Shoulder float64 `json:"shoulder"`
	Arm      float64 `json:"arm"`
	Wrist    float64 `json:"wrist"`
}

// IsFinite reports whether every angle is a finite number.
func (j Joints) IsFinite() bool {
	for _, v := range [3]float64{j.Shoulder, j.Arm, j.Wrist} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// LegID names one of the four legs.
type LegID string

const (
	FrontLeft  LegID = "front_left"
	FrontRight LegID = "front_right"
	BackLeft   LegID = "back_left"
	BackRight  LegID = "back_right"
)

// LegCount is the number of legs on the device.
const LegCount = 4

// Legs returns all leg ids in wire order.
func Legs() [LegCount]LegID {
	return [LegCount]LegID{FrontLeft, FrontRight, BackLeft, BackRight}
}

// Valid reports whether id names a known leg.
func (id LegID) Valid() bool {
	switch id {
	case FrontLeft, FrontRight, BackLeft, BackRight:
		return true
	}
	return false
}

// Snapshot is the full instantaneous posture of the device.
type Snapshot struct {
	Body       Quat   `json:"body"`
	FrontLeft  Joints `json:"front_left_leg"`
	FrontRight Joints `json:"front_right_leg"`
	BackLeft   Joints `json:"back_left_leg"`
	BackRight  Joints `json:"back_right_leg"`
}

// Zero returns the rest pose: identity body orientation, all joints at zero.
func Zero() Snapshot {
	return Snapshot{Body: Identity()}
}

// Leg returns the joint triplet of the given leg.
func (s Snapshot) Leg(id LegID) (Joints, error) {
	switch id {
	case FrontLeft:
		return s.FrontLeft, nil
	case FrontRight:
		return s.FrontRight, nil
	case BackLeft:
		return s.BackLeft, nil
	case BackRight:
		return s.BackRight, nil
	}
	return Joints{}, fmt.Errorf("%w: %q", ErrUnknownLeg, id)
}

// WithLeg returns a copy of s with one leg's joints replaced.
func (s Snapshot) WithLeg(id LegID, j Joints) (Snapshot, error) {
	switch id {
	case FrontLeft:
		s.FrontLeft = j
	case FrontRight:
		s.FrontRight = j
	case BackLeft:
		s.BackLeft = j
	case BackRight:
		s.BackRight = j
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownLeg, id)
	}
	return s, nil
}

// WithBody returns a copy of s with the body orientation replaced.
func (s Snapshot) WithBody(q Quat) Snapshot {
	s.Body = q
	return s
}

// LegJoints returns the four leg triplets in wire order.
func (s Snapshot) LegJoints() [LegCount]Joints {
	return [LegCount]Joints{s.FrontLeft, s.FrontRight, s.BackLeft, s.BackRight}
}

// ApproxEqual reports whether every value of s and other differs by at most tol.
func (s Snapshot) ApproxEqual(other Snapshot, tol float64) bool {
	if !s.Body.ApproxEqual(other.Body, tol) {
		return false
	}
	a, b := s.LegJoints(), other.LegJoints()
	for i := range a {
		if math.Abs(a[i].Shoulder-b[i].Shoulder) > tol ||
			math.Abs(a[i].Arm-b[i].Arm) > tol ||
			math.Abs(a[i].Wrist-b[i].Wrist) > tol {
			return false
		}
	}
	return true
}

// Encode returns the JSON wire form of s.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a JSON snapshot.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return s, nil
}
