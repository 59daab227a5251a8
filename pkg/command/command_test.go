package command

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-woofer/pkg/device"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/pose"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

type fakeStick struct {
	x, y float64
	ok   bool
}

func (f *fakeStick) ReadStickAxes() (float64, float64, bool) {
	return f.x, f.y, f.ok
}

func TestEmitterTick(t *testing.T) {
	tests := []struct {
		name  string
		stick StickReader
		want  bool
	}{
		{"no stick", nil, false},
		{"stick unavailable", &fakeStick{ok: false}, false},
		{"centered", &fakeStick{ok: true}, true},
		{"deflected", &fakeStick{x: 0.5, y: -1, ok: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := handoff.New[protocol.Command]()
			e := NewEmitter(tt.stick, q)

			assert.Equal(t, tt.want, e.Tick())
			if tt.want {
				assert.Equal(t, 1, q.Len())
			} else {
				assert.Zero(t, q.Len())
			}
		})
	}
}

func TestEmitterCommandIsValidPose(t *testing.T) {
	q := handoff.New[protocol.Command]()
	e := NewEmitter(&fakeStick{x: 1, y: 0.25, ok: true}, q)
	require.True(t, e.Tick())

	cmds := q.Drain()
	require.Len(t, cmds, 1)
	cmd := cmds[0]
	assert.Equal(t, protocol.KindPose, cmd.Kind)

	v, err := cmd.Variant()
	require.NoError(t, err)
	p, ok := v.(protocol.Pose)
	require.True(t, ok)
	assert.True(t, p.Body.IsUnit())
	assert.True(t, p.Body.ApproxEqual(Orientation(1, 0.25, DefaultMaxTilt), 1e-12))
}

func TestOrientation(t *testing.T) {
	const tilt = math.Pi / 6

	tests := []struct {
		name string
		x, y float64
		want pose.Quat
	}{
		{"centered", 0, 0, pose.Identity()},
		{"x only", 1, 0, pose.RotationX(tilt)},
		{"y only", 0, -1, pose.RotationZ(-tilt)},
		{"both", 0.5, 0.5, pose.RotationZ(tilt / 2).Mul(pose.RotationX(tilt / 2))},
		{"clamped", 3, -7, pose.RotationZ(-tilt).Mul(pose.RotationX(tilt))},
		{"nan is centered", math.NaN(), 0, pose.Identity()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Orientation(tt.x, tt.y, tilt)
			if !got.ApproxEqual(tt.want, 1e-12) {
				t.Errorf("Orientation(%v, %v) = %+v, want %+v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

// recorder is a device stand-in that records POST bodies in arrival order.
type recorder struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	status := r.status
	r.mu.Unlock()
	if status != 0 {
		http.Error(w, "bad command", status)
	}
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func TestSenderPostsInOrder(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	q := handoff.New[protocol.Command]()
	var want []string
	for i := 0; i < 20; i++ {
		cmd, err := protocol.NewPoseCommand(pose.RotationZ(float64(i) / 100))
		require.NoError(t, err)
		b, err := cmd.Bytes()
		require.NoError(t, err)
		want = append(want, string(b))
		q.Push(cmd)
	}

	s := NewSender(srv.URL, q)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.received()) == 20 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)

	assert.Equal(t, want, rec.received())
	assert.Equal(t, SenderStats{Sent: 20}, s.Stats())
}

func TestSenderCountsFailures(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	q := handoff.New[protocol.Command]()
	s := NewSender(srv.URL, q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 3; i++ {
		cmd, err := protocol.NewPoseCommand(pose.Identity())
		require.NoError(t, err)
		q.Push(cmd)
	}

	require.Eventually(t, func() bool { return s.Stats().Failed == 3 }, 2*time.Second, 5*time.Millisecond)
	// Failed commands are not retried.
	assert.Len(t, rec.received(), 3)
	assert.Zero(t, s.Stats().Sent)
}

func TestSendReportsStatus(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := NewSender(srv.URL, handoff.New[protocol.Command]())
	cmd, err := protocol.NewPoseCommand(pose.Identity())
	require.NoError(t, err)

	err = s.Send(context.Background(), cmd)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "bad command")
}

func TestSendUnreachableDevice(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := NewSender("http://"+addr, handoff.New[protocol.Command]())
	cmd, err := protocol.NewPoseCommand(pose.Identity())
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), cmd))
}

func TestEmitterToDevice(t *testing.T) {
	state := device.NewState()
	srv := device.NewServer(state)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	defer srv.Shutdown()

	q := handoff.New[protocol.Command]()
	e := NewEmitter(&fakeStick{x: -0.5, y: 0.75, ok: true}, q)
	s := NewSender("http://"+ln.Addr().String(), q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.True(t, e.Tick())
	require.Eventually(t, func() bool { return state.Revision() == 1 }, 2*time.Second, 5*time.Millisecond)

	want := Orientation(-0.5, 0.75, DefaultMaxTilt)
	assert.True(t, state.Snapshot().Body.ApproxEqual(want, 1e-9))
}
