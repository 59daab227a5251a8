// Package command turns stick input into pose commands and delivers them to
// the device.
package command

import (
	"log/slog"
	"math"

	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/pose"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// DefaultMaxTilt is the body rotation, in radians, at full stick deflection.
const DefaultMaxTilt = math.Pi / 6

// StickReader reports the current two-axis stick position.
// Axes are in [-1, 1]. ok is false while no stick is available.
type StickReader interface {
	ReadStickAxes() (x, y float64, ok bool)
}

// Emitter samples a stick once per host tick and queues a pose command.
type Emitter struct {
	stick StickReader
	out   *handoff.Queue[protocol.Command]
	log   *slog.Logger

	// MaxTilt scales stick deflection to body rotation.
	MaxTilt float64
}

// NewEmitter creates an emitter reading stick and pushing onto out.
// stick may be nil, in which case Tick does nothing.
func NewEmitter(stick StickReader, out *handoff.Queue[protocol.Command]) *Emitter {
	return &Emitter{
		stick:   stick,
		out:     out,
		log:     log.Component("emitter"),
		MaxTilt: DefaultMaxTilt,
	}
}

// Tick samples the stick and queues at most one command. It never blocks.
// It reports whether a command was queued.
func (e *Emitter) Tick() bool {
	if e.stick == nil {
		return false
	}
	x, y, ok := e.stick.ReadStickAxes()
	if !ok {
		return false
	}

	cmd, err := protocol.NewPoseCommand(Orientation(x, y, e.MaxTilt))
	if err != nil {
		e.log.Warn("failed to build pose command", "error", err)
		return false
	}
	e.out.Push(cmd)
	return true
}

// Orientation maps stick axes to a body orientation: a rotation of x·maxTilt
// about X followed by y·maxTilt about Z. Axes outside [-1, 1] are clamped.
func Orientation(x, y, maxTilt float64) pose.Quat {
	x, y = clamp(x), clamp(y)
	return pose.RotationX(x * maxTilt).Then(pose.RotationZ(y * maxTilt))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
