// Package replay feeds recorded commands back onto the outbound queue with
// their original timing.
package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/journal"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// Player replays journal entries.
type Player struct {
	entries []journal.Entry
	out     *handoff.Queue[protocol.Command]
	speed   float64
	log     *slog.Logger

	sent    int
	skipped int
}

// NewPlayer creates a player for entries, oldest first. speed scales the
// recorded gaps: 2 plays twice as fast. A non-positive speed plays in real time.
func NewPlayer(entries []journal.Entry, out *handoff.Queue[protocol.Command], speed float64) *Player {
	if speed <= 0 {
		speed = 1
	}
	return &Player{
		entries: entries,
		out:     out,
		speed:   speed,
		log:     log.Component("replay"),
	}
}

// Run pushes every entry, waiting the scaled recorded gap before each one.
// It returns nil after the last entry and ctx.Err() if canceled first.
// Entries that no longer parse as valid commands are skipped.
func (p *Player) Run(ctx context.Context) error {
	p.log.Info("replay started", "entries", len(p.entries), "speed", p.speed)

	var prev time.Time
	for i, e := range p.entries {
		if i > 0 {
			if err := p.wait(ctx, e.RecordedAt.Sub(prev)); err != nil {
				return err
			}
		}
		prev = e.RecordedAt

		cmd := e.Command()
		if _, err := cmd.Variant(); err != nil {
			p.skipped++
			p.log.Warn("skipping invalid entry", "id", e.ID, "error", err)
			continue
		}
		p.out.Push(cmd)
		p.sent++
	}

	p.log.Info("replay finished", "sent", p.sent, "skipped", p.skipped)
	return nil
}

func (p *Player) wait(ctx context.Context, gap time.Duration) error {
	if gap <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(float64(gap) / p.speed))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sent returns how many commands were pushed.
func (p *Player) Sent() int {
	return p.sent
}

// Skipped returns how many entries were invalid.
func (p *Player) Skipped() int {
	return p.skipped
}
