package bridge

import (
	"sync"

	"github.com/teslashibe/go-woofer/pkg/pose"
)

// Axis is a unit rotation axis.
type Axis [3]float64

// Principal axes.
var (
	AxisX = Axis{1, 0, 0}
	AxisY = Axis{0, 1, 0}
	AxisZ = Axis{0, 0, 1}
)

// RevoluteJoint is a single-axis joint of the kinematic model.
type RevoluteJoint struct {
	Name  string
	Axis  Axis
	Angle float64
}

// Rotation returns the joint's local rotation.
func (j RevoluteJoint) Rotation() pose.Quat {
	return pose.FromAxisAngle(j.Axis[0], j.Axis[1], j.Axis[2], j.Angle)
}

// JointTable is an in-memory kinematic model: a registry of revolute joints
// and bodies. It implements Kinematics and Registry and is safe for
// concurrent use.
type JointTable struct {
	mu     sync.RWMutex
	joints map[JointHandle]*RevoluteJoint
	bodies map[BodyHandle]pose.Quat
	next   uint32
}

// NewJointTable creates an empty table.
func NewJointTable() *JointTable {
	return &JointTable{
		joints: make(map[JointHandle]*RevoluteJoint),
		bodies: make(map[BodyHandle]pose.Quat),
	}
}

// AddJoint registers a joint rotating about axis and returns its handle.
func (t *JointTable) AddJoint(name string, axis Axis) JointHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := JointHandle(t.next)
	t.joints[h] = &RevoluteJoint{Name: name, Axis: axis}
	return h
}

// AddBody registers a body at the identity orientation and returns its handle.
func (t *JointTable) AddBody() BodyHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := BodyHandle(t.next)
	t.bodies[h] = pose.Identity()
	return h
}

// SpawnPlant registers a body and the twelve leg joints of one device and
// returns the resulting plant. Shoulders rotate about X, arms and wrists
// about Z.
func (t *JointTable) SpawnPlant(name string) Plant {
	p := Plant{Body: t.AddBody()}
	for i, leg := range pose.Legs() {
		prefix := name + "." + string(leg)
		p.Legs[i] = LegJoints{
			Shoulder: t.AddJoint(prefix+".shoulder", AxisX),
			Arm:      t.AddJoint(prefix+".arm", AxisZ),
			Wrist:    t.AddJoint(prefix+".wrist", AxisZ),
		}
	}
	return p
}

// ApplyJointAngle implements Kinematics. Unknown handles are ignored.
func (t *JointTable) ApplyJointAngle(j JointHandle, angle float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if joint, ok := t.joints[j]; ok {
		joint.Angle = angle
	}
}

// ApplyBodyOrientation implements Kinematics. Unknown handles are ignored.
func (t *JointTable) ApplyBodyOrientation(b BodyHandle, q pose.Quat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bodies[b]; ok {
		t.bodies[b] = q
	}
}

// HasJoint implements Registry.
func (t *JointTable) HasJoint(j JointHandle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.joints[j]
	return ok
}

// HasBody implements Registry.
func (t *JointTable) HasBody(b BodyHandle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.bodies[b]
	return ok
}

// Joint returns a copy of the joint registered under j.
func (t *JointTable) Joint(j JointHandle) (RevoluteJoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	joint, ok := t.joints[j]
	if !ok {
		return RevoluteJoint{}, false
	}
	return *joint, true
}

// Body returns the current orientation of body b.
func (t *JointTable) Body(b BodyHandle) (pose.Quat, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.bodies[b]
	return q, ok
}

// Pose reads plant p back into a snapshot.
func (t *JointTable) Pose(p Plant) pose.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := pose.Snapshot{Body: t.bodies[p.Body]}
	angle := func(h JointHandle) float64 {
		if j, ok := t.joints[h]; ok {
			return j.Angle
		}
		return 0
	}
	for i, leg := range pose.Legs() {
		j := pose.Joints{
			Shoulder: angle(p.Legs[i].Shoulder),
			Arm:      angle(p.Legs[i].Arm),
			Wrist:    angle(p.Legs[i].Wrist),
		}
		s, _ = s.WithLeg(leg, j)
	}
	return s
}
