// Package protocol defines the command envelope a controller posts to the device.
//
// The envelope is a tagged union: a "kind" discriminant plus a "data" payload
// whose shape depends on the kind. New kinds can be added without changing
// existing payloads.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-woofer/pkg/pose"
)

// Kind identifies the variant carried by a command envelope.
type Kind string

const (
	// KindPose sets the desired body orientation.
	KindPose Kind = "pose"
	// KindLeg replaces the joint triplet of one leg.
	KindLeg Kind = "leg"
)

// Command is the wire envelope for a single requested state change.
type Command struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Variant is a decoded command payload.
// Apply returns the full post-state; it never mutates its argument.
type Variant interface {
	Kind() Kind
	Apply(s pose.Snapshot) pose.Snapshot
	validate() error
}

// Pose is the payload of a "pose" command.
type Pose struct {
	Body pose.Quat `json:"body"`
}

// Kind implements Variant.
func (Pose) Kind() Kind { return KindPose }

// Apply replaces the body orientation and keeps every leg as it was.
func (p Pose) Apply(s pose.Snapshot) pose.Snapshot {
	return s.WithBody(p.Body)
}

func (p Pose) validate() error {
	if !p.Body.IsFinite() {
		return fmt.Errorf("%w: body quaternion is not finite", ErrMalformed)
	}
	if !p.Body.IsUnit() {
		return fmt.Errorf("%w: body quaternion norm %.6f is not 1", ErrMalformed, p.Body.Norm())
	}
	return nil
}

// Leg is the payload of a "leg" command.
type Leg struct {
	Leg    pose.LegID  `json:"leg"`
	Joints pose.Joints `json:"joints"`
}

// Kind implements Variant.
func (Leg) Kind() Kind { return KindLeg }

// Apply replaces one leg's joints. Legs are validated before Apply runs.
func (l Leg) Apply(s pose.Snapshot) pose.Snapshot {
	next, err := s.WithLeg(l.Leg, l.Joints)
	if err != nil {
		return s
	}
	return next
}

func (l Leg) validate() error {
	if !l.Leg.Valid() {
		return fmt.Errorf("%w: unknown leg %q", ErrMalformed, l.Leg)
	}
	if !l.Joints.IsFinite() {
		return fmt.Errorf("%w: joint angles are not finite", ErrMalformed)
	}
	return nil
}

// NewCommand wraps a variant into an envelope.
func NewCommand(v Variant) (Command, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Command{}, fmt.Errorf("failed to marshal %s payload: %w", v.Kind(), err)
	}
	return Command{Kind: v.Kind(), Data: data}, nil
}

// NewPoseCommand creates a "pose" command for the given body orientation.
func NewPoseCommand(body pose.Quat) (Command, error) {
	return NewCommand(Pose{Body: body})
}

// NewLegCommand creates a "leg" command.
func NewLegCommand(leg pose.LegID, joints pose.Joints) (Command, error) {
	return NewCommand(Leg{Leg: leg, Joints: joints})
}

// Bytes returns the JSON-encoded envelope.
func (c Command) Bytes() ([]byte, error) {
	return json.Marshal(c)
}

// Variant decodes and validates the payload according to the envelope kind.
func (c Command) Variant() (Variant, error) {
	var v Variant
	switch c.Kind {
	case KindPose:
		var p Pose
		if err := c.parseData(&p); err != nil {
			return nil, err
		}
		v = p
	case KindLeg:
		var l Leg
		if err := c.parseData(&l); err != nil {
			return nil, err
		}
		v = l
	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}

	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (c Command) parseData(v any) error {
	if len(c.Data) == 0 || string(c.Data) == "null" {
		return fmt.Errorf("%w: missing data for %s", ErrMalformed, c.Kind)
	}
	if err := json.Unmarshal(c.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ParseCommand parses an envelope from JSON and decodes its variant.
func ParseCommand(data []byte) (Command, Variant, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v, err := c.Variant()
	if err != nil {
		return c, nil, err
	}
	return c, v, nil
}
