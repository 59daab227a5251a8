// Package bridge applies snapshots received from the device to the joints of
// locally tracked plants, once per host tick.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/pose"
)

// JointHandle identifies one revolute joint in the kinematic model.
type JointHandle uint32

// BodyHandle identifies a plant's body in the kinematic model.
type BodyHandle uint32

// Kinematics receives joint angles and body orientations.
// Both calls must return without blocking.
type Kinematics interface {
	ApplyJointAngle(j JointHandle, angle float64)
	ApplyBodyOrientation(b BodyHandle, q pose.Quat)
}

// Registry reports which handles exist. When the Kinematics passed to New
// also implements Registry, every plant handle is checked at construction.
type Registry interface {
	HasJoint(j JointHandle) bool
	HasBody(b BodyHandle) bool
}

// LegJoints maps one leg to its three joints.
type LegJoints struct {
	Shoulder JointHandle
	Arm      JointHandle
	Wrist    JointHandle
}

func (l LegJoints) handles() [3]JointHandle {
	return [3]JointHandle{l.Shoulder, l.Arm, l.Wrist}
}

// Plant is one tracked device instance. Legs are in pose.Legs() order.
type Plant struct {
	Body BodyHandle
	Legs [pose.LegCount]LegJoints
}

// Notification is one snapshot delivered to the synchronous side.
// Seq starts at 1 and increases by one per snapshot.
type Notification struct {
	Seq      uint64
	Snapshot pose.Snapshot
}

// Bridge drains the inbound queue and drives the kinematic model.
// Tick must only be called from the host loop goroutine; Last may be called
// from anywhere.
type Bridge struct {
	queue  *handoff.Queue[pose.Snapshot]
	kin    Kinematics
	plants []Plant
	log    *slog.Logger

	seq uint64

	mu   sync.Mutex
	last Notification
}

// New creates a bridge applying snapshots from queue to every plant.
func New(queue *handoff.Queue[pose.Snapshot], kin Kinematics, plants ...Plant) (*Bridge, error) {
	if reg, ok := kin.(Registry); ok {
		for i, p := range plants {
			if err := validate(reg, p); err != nil {
				return nil, fmt.Errorf("plant %d: %w", i, err)
			}
		}
	}

	return &Bridge{
		queue:  queue,
		kin:    kin,
		plants: plants,
		log:    log.Component("bridge"),
	}, nil
}

func validate(reg Registry, p Plant) error {
	if !reg.HasBody(p.Body) {
		return fmt.Errorf("%w: %d", ErrUnknownBody, p.Body)
	}
	legs := pose.Legs()
	for i, leg := range p.Legs {
		for _, j := range leg.handles() {
			if !reg.HasJoint(j) {
				return fmt.Errorf("%w: %d on %s leg", ErrUnknownJoint, j, legs[i])
			}
		}
	}
	return nil
}

// Tick applies every queued snapshot in delivery order and returns how many
// were handled. It never blocks.
func (b *Bridge) Tick() int {
	snapshots := b.queue.Drain()
	for _, s := range snapshots {
		b.seq++
		n := Notification{Seq: b.seq, Snapshot: s}
		for _, p := range b.plants {
			b.apply(p, s)
		}
		b.mu.Lock()
		b.last = n
		b.mu.Unlock()
	}
	if len(snapshots) > 1 {
		b.log.Debug("applied backlog", "snapshots", len(snapshots), "seq", b.seq)
	}
	return len(snapshots)
}

func (b *Bridge) apply(p Plant, s pose.Snapshot) {
	joints := s.LegJoints()
	for i, leg := range p.Legs {
		b.kin.ApplyJointAngle(leg.Shoulder, joints[i].Shoulder)
		b.kin.ApplyJointAngle(leg.Arm, joints[i].Arm)
		b.kin.ApplyJointAngle(leg.Wrist, joints[i].Wrist)
	}
	b.kin.ApplyBodyOrientation(p.Body, s.Body)
}

// Last returns the most recently applied notification. Seq is 0 before the
// first snapshot.
func (b *Bridge) Last() Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Plants returns the number of tracked plants.
func (b *Bridge) Plants() int {
	return len(b.plants)
}
