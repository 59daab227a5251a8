// Package host runs the synchronous side of the controller: a fixed-rate
// loop that calls every registered system once per tick on one goroutine.
package host

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/log"
)

// DefaultRate is the default tick interval (60 Hz).
const DefaultRate = config.DefaultTickRate

// heartbeatTicks is how many ticks pass between heartbeat logs.
const heartbeatTicks = 600

// System is one per-tick step. Systems must not block.
type System func()

// Loop calls its systems in registration order once per tick.
type Loop struct {
	rate    time.Duration
	systems []System
	log     *slog.Logger

	ticks atomic.Uint64
}

// NewLoop creates a loop ticking every rate. A non-positive rate uses DefaultRate.
func NewLoop(rate time.Duration, systems ...System) *Loop {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Loop{
		rate:    rate,
		systems: systems,
		log:     log.Component("host"),
	}
}

// Add registers another system. It must be called before Run.
func (l *Loop) Add(s System) {
	l.systems = append(l.systems, s)
}

// Run ticks until ctx ends.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()

	l.log.Info("loop started", "rate", l.rate, "systems", len(l.systems))
	defer func() {
		l.log.Info("loop stopped", "ticks", l.ticks.Load())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs every system once.
func (l *Loop) Tick() {
	for _, s := range l.systems {
		s()
	}
	n := l.ticks.Add(1)
	if n%heartbeatTicks == 0 {
		l.log.Debug("heartbeat", "ticks", n)
	}
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}
