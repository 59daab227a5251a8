package device

import (
	"sync"
	"testing"

	"github.com/teslashibe/go-woofer/pkg/pose"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

func TestNewStateIsZeroPose(t *testing.T) {
	s := NewState()

	snap, rev := s.Read()
	if snap != pose.Zero() {
		t.Errorf("initial snapshot = %+v, want zero pose", snap)
	}
	if rev != 0 {
		t.Errorf("initial revision = %d, want 0", rev)
	}
}

func TestApplyReturnsPostState(t *testing.T) {
	s := NewState()

	joints := pose.Joints{Shoulder: 1, Arm: 2, Wrist: 3}
	got, rev := s.Apply(protocol.Leg{Leg: pose.FrontRight, Joints: joints})
	if got.FrontRight != joints {
		t.Errorf("FrontRight = %+v, want %+v", got.FrontRight, joints)
	}
	if rev != 1 {
		t.Errorf("revision = %d, want 1", rev)
	}

	body := pose.RotationZ(0.5)
	got, rev = s.Apply(protocol.Pose{Body: body})
	if got.Body != body {
		t.Errorf("Body = %+v, want %+v", got.Body, body)
	}
	if got.FrontRight != joints {
		t.Error("pose command should keep leg joints")
	}
	if rev != 2 {
		t.Errorf("revision = %d, want 2", rev)
	}

	if s.Snapshot() != got {
		t.Error("Snapshot should match the last post-state")
	}
}

// Writers set all three joints of a leg to the same value. A reader that
// ever sees differing values within one triplet observed a torn write.
func TestConcurrentApplyNeverTears(t *testing.T) {
	s := NewState()

	const (
		writers = 4
		rounds  = 500
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			leg := pose.Legs()[w%pose.LegCount]
			for i := 0; i < rounds; i++ {
				v := float64(w*rounds + i)
				s.Apply(protocol.Leg{Leg: leg, Joints: pose.Joints{Shoulder: v, Arm: v, Wrist: v}})
			}
		}(w)
	}

	stop := make(chan struct{})
	torn := make(chan pose.Snapshot, 1)
	var readers sync.WaitGroup
	for r := 0; r < 2; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				for _, j := range snap.LegJoints() {
					if j.Shoulder != j.Arm || j.Arm != j.Wrist {
						select {
						case torn <- snap:
						default:
						}
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	select {
	case snap := <-torn:
		t.Fatalf("observed torn snapshot: %+v", snap)
	default:
	}

	if rev := s.Revision(); rev != writers*rounds {
		t.Errorf("revision = %d, want %d", rev, writers*rounds)
	}
}
