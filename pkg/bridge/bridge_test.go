package bridge

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/pose"
)

type jointCall struct {
	joint JointHandle
	angle float64
}

// recordingKinematics records every call in order.
type recordingKinematics struct {
	joints []jointCall
	bodies []pose.Quat
}

func (r *recordingKinematics) ApplyJointAngle(j JointHandle, angle float64) {
	r.joints = append(r.joints, jointCall{j, angle})
}

func (r *recordingKinematics) ApplyBodyOrientation(_ BodyHandle, q pose.Quat) {
	r.bodies = append(r.bodies, q)
}

func testPlant() Plant {
	p := Plant{Body: 100}
	h := JointHandle(1)
	for i := range p.Legs {
		p.Legs[i] = LegJoints{Shoulder: h, Arm: h + 1, Wrist: h + 2}
		h += 3
	}
	return p
}

func snapshotWith(v float64) pose.Snapshot {
	s := pose.Zero().WithBody(pose.RotationY(v))
	for i, leg := range pose.Legs() {
		base := v + float64(i)*10
		s, _ = s.WithLeg(leg, pose.Joints{Shoulder: base + 1, Arm: base + 2, Wrist: base + 3})
	}
	return s
}

func TestTickAppliesTwelveJointsAndBody(t *testing.T) {
	q := handoff.New[pose.Snapshot]()
	kin := &recordingKinematics{}
	b, err := New(q, kin, testPlant())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q.Push(snapshotWith(0))
	if n := b.Tick(); n != 1 {
		t.Fatalf("Tick() = %d, want 1", n)
	}

	if len(kin.joints) != 12 {
		t.Fatalf("got %d joint calls, want 12", len(kin.joints))
	}
	// Joints are applied shoulder, arm, wrist for each leg in wire order.
	for i, call := range kin.joints {
		if call.joint != JointHandle(i+1) {
			t.Errorf("call %d joint = %d, want %d", i, call.joint, i+1)
		}
		leg, part := i/3, i%3
		if want := float64(leg*10 + part + 1); call.angle != want {
			t.Errorf("call %d angle = %v, want %v", i, call.angle, want)
		}
	}
	if len(kin.bodies) != 1 || kin.bodies[0] != pose.RotationY(0) {
		t.Errorf("body calls = %+v", kin.bodies)
	}
}

func TestTickAppliesEverySnapshotInOrder(t *testing.T) {
	q := handoff.New[pose.Snapshot]()
	kin := &recordingKinematics{}
	b, err := New(q, kin, testPlant())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		q.Push(snapshotWith(float64(i) * 100))
	}

	if n := b.Tick(); n != 5 {
		t.Fatalf("Tick() = %d, want 5", n)
	}
	if len(kin.joints) != 5*12 {
		t.Fatalf("got %d joint calls, want 60", len(kin.joints))
	}
	for i := 0; i < 5; i++ {
		first := kin.joints[i*12]
		if want := float64(i)*100 + 1; first.angle != want {
			t.Errorf("snapshot %d first angle = %v, want %v", i, first.angle, want)
		}
	}

	last := b.Last()
	if last.Seq != 5 {
		t.Errorf("Last().Seq = %d, want 5", last.Seq)
	}
	if last.Snapshot != snapshotWith(400) {
		t.Error("Last() should hold the final snapshot")
	}
}

func TestTickEmptyQueue(t *testing.T) {
	q := handoff.New[pose.Snapshot]()
	kin := &recordingKinematics{}
	b, err := New(q, kin, testPlant())
	if err != nil {
		t.Fatal(err)
	}

	if n := b.Tick(); n != 0 {
		t.Errorf("Tick() = %d, want 0", n)
	}
	if len(kin.joints) != 0 || len(kin.bodies) != 0 {
		t.Error("empty tick should not touch the model")
	}
	if b.Last().Seq != 0 {
		t.Error("Last().Seq should be 0 before the first snapshot")
	}
}

func TestTickDrivesEveryPlant(t *testing.T) {
	q := handoff.New[pose.Snapshot]()
	table := NewJointTable()
	p1, p2 := table.SpawnPlant("a"), table.SpawnPlant("b")
	b, err := New(q, table, p1, p2)
	if err != nil {
		t.Fatal(err)
	}

	want := snapshotWith(0.5)
	q.Push(want)
	b.Tick()

	for _, p := range []Plant{p1, p2} {
		if got := table.Pose(p); got != want {
			t.Errorf("plant pose = %+v, want %+v", got, want)
		}
	}
}

func TestNewRejectsUnknownHandles(t *testing.T) {
	table := NewJointTable()
	good := table.SpawnPlant("dog")

	badJoint := good
	badJoint.Legs[2].Wrist = 9999

	badBody := good
	badBody.Body = 9999

	tests := []struct {
		name  string
		plant Plant
		want  error
	}{
		{"unknown joint", badJoint, ErrUnknownJoint},
		{"unknown body", badBody, ErrUnknownBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(handoff.New[pose.Snapshot](), table, good, tt.plant)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewWithoutRegistrySkipsValidation(t *testing.T) {
	_, err := New(handoff.New[pose.Snapshot](), &recordingKinematics{}, Plant{Body: 42})
	if err != nil {
		t.Errorf("New() error = %v, want nil", err)
	}
}

func TestJointTable(t *testing.T) {
	table := NewJointTable()
	p := table.SpawnPlant("dog")

	shoulder, ok := table.Joint(p.Legs[0].Shoulder)
	if !ok {
		t.Fatal("shoulder not registered")
	}
	if shoulder.Name != "dog.front_left.shoulder" || shoulder.Axis != AxisX {
		t.Errorf("shoulder = %+v", shoulder)
	}

	table.ApplyJointAngle(p.Legs[0].Shoulder, 0.7)
	shoulder, _ = table.Joint(p.Legs[0].Shoulder)
	if !shoulder.Rotation().ApproxEqual(pose.RotationX(0.7), 1e-12) {
		t.Errorf("rotation = %+v", shoulder.Rotation())
	}

	if q, ok := table.Body(p.Body); !ok || q != pose.Identity() {
		t.Errorf("body = %+v, %v; want identity", q, ok)
	}

	// Unknown handles are ignored.
	table.ApplyJointAngle(12345, 1)
	table.ApplyBodyOrientation(12345, pose.Identity())
	if table.HasJoint(12345) || table.HasBody(12345) {
		t.Error("apply must not register unknown handles")
	}
}
