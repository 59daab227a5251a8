package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/bridge"
	"github.com/teslashibe/go-woofer/pkg/command"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/host"
	"github.com/teslashibe/go-woofer/pkg/input"
	"github.com/teslashibe/go-woofer/pkg/journal"
	"github.com/teslashibe/go-woofer/pkg/pose"
	"github.com/teslashibe/go-woofer/pkg/protocol"
	"github.com/teslashibe/go-woofer/pkg/replay"
	"github.com/teslashibe/go-woofer/pkg/stream"
)

// statusInterval is how often the controller logs link statistics.
const statusInterval = 5 * time.Second

// controllerOptions holds the flags of the controller command.
type controllerOptions struct {
	deviceURL         string
	serialPort        string
	baud              int
	replayPath        string
	replaySpeed       float64
	tick              time.Duration
	plants            int
	maxTilt           float64
	reconnect         time.Duration
	maxReconnects     int
	stopOnDecodeError bool
}

var controllerOpts controllerOptions

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Mirror the device pose and send stick commands",
	Long: `Subscribes to the device's snapshot stream and applies every snapshot to
a local kinematic model on a fixed-rate host loop.

Commands come from a serial stick (--serial) that prints "x,y" lines, or
from a recorded journal (--replay). Without either, the controller only
mirrors the device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runController(ctx, controllerOpts)
	},
}

func init() {
	f := controllerCmd.Flags()
	f.StringVar(&controllerOpts.deviceURL, "device", config.DeviceURL(), "device base URL")
	f.StringVar(&controllerOpts.serialPort, "serial", "", "serial port of the stick (e.g. /dev/ttyUSB0)")
	f.IntVar(&controllerOpts.baud, "baud", input.DefaultBaudRate, "stick baud rate")
	f.StringVar(&controllerOpts.replayPath, "replay", "", "replay commands from a journal file")
	f.Float64Var(&controllerOpts.replaySpeed, "speed", 1, "replay speed factor")
	f.DurationVar(&controllerOpts.tick, "tick", config.DefaultTickRate, "host loop tick interval")
	f.IntVar(&controllerOpts.plants, "plants", 1, "number of mirrored plants")
	f.Float64Var(&controllerOpts.maxTilt, "max-tilt", command.DefaultMaxTilt, "body rotation at full stick deflection (radians)")
	f.DurationVar(&controllerOpts.reconnect, "reconnect", stream.DefaultReconnectInterval, "stream reconnect interval")
	f.IntVar(&controllerOpts.maxReconnects, "max-reconnects", 0, "consecutive failed subscriptions before giving up (0 = unlimited)")
	f.BoolVar(&controllerOpts.stopOnDecodeError, "stop-on-decode-error", false, "end the subscription on a malformed snapshot")

	rootCmd.AddCommand(controllerCmd)
}

// controller is the assembled controller pipeline.
type controller struct {
	inbound  *handoff.Queue[pose.Snapshot]
	outbound *handoff.Queue[protocol.Command]

	client  *stream.Client
	sender  *command.Sender
	table   *bridge.JointTable
	bridge  *bridge.Bridge
	emitter *command.Emitter
	loop    *host.Loop
}

// newController wires queues, stream client, sender, bridge and host loop.
// stick may be nil.
func newController(opts controllerOptions, stick command.StickReader) (*controller, error) {
	if opts.plants < 1 {
		return nil, fmt.Errorf("--plants must be at least 1, got %d", opts.plants)
	}

	c := &controller{
		inbound:  handoff.New[pose.Snapshot](),
		outbound: handoff.New[protocol.Command](),
		table:    bridge.NewJointTable(),
	}

	streamOpts := []stream.Option{
		stream.WithReconnectInterval(opts.reconnect),
		stream.WithMaxReconnectAttempts(opts.maxReconnects),
	}
	if opts.stopOnDecodeError {
		streamOpts = append(streamOpts, stream.WithStopOnDecodeError())
	}
	c.client = stream.NewClient(opts.deviceURL, c.inbound, streamOpts...)
	c.sender = command.NewSender(opts.deviceURL, c.outbound)

	plants := make([]bridge.Plant, opts.plants)
	for i := range plants {
		plants[i] = c.table.SpawnPlant(fmt.Sprintf("plant%d", i))
	}
	b, err := bridge.New(c.inbound, c.table, plants...)
	if err != nil {
		return nil, err
	}
	c.bridge = b

	c.emitter = command.NewEmitter(stick, c.outbound)
	if opts.maxTilt > 0 {
		c.emitter.MaxTilt = opts.maxTilt
	}

	c.loop = host.NewLoop(opts.tick,
		func() { c.emitter.Tick() },
		func() { c.bridge.Tick() },
	)
	return c, nil
}

func runController(ctx context.Context, opts controllerOptions) error {
	if opts.serialPort != "" && opts.replayPath != "" {
		return errors.New("--serial and --replay are mutually exclusive")
	}

	var stick *input.SerialStick
	if opts.serialPort != "" {
		s, err := input.Open(opts.serialPort, opts.baud)
		if err != nil {
			return err
		}
		stick = s
	}

	var player *replay.Player
	var ctrl *controller
	var err error
	// Keep a nil *SerialStick out of the StickReader interface.
	if stick != nil {
		ctrl, err = newController(opts, stick)
	} else {
		ctrl, err = newController(opts, nil)
	}
	if err != nil {
		return err
	}

	if opts.replayPath != "" {
		entries, err := loadJournal(ctx, opts.replayPath)
		if err != nil {
			return err
		}
		player = replay.NewPlayer(entries, ctrl.outbound, opts.replaySpeed)
	}

	log.Info("controller starting",
		"device", opts.deviceURL, "plants", opts.plants, "tick", opts.tick,
		"serial", opts.serialPort, "replay", opts.replayPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keepRunning(ctx, "stream", ctrl.client.Run)
		return nil
	})
	g.Go(func() error { return ctrl.sender.Run(ctx) })
	g.Go(func() error {
		ctrl.loop.Run(ctx)
		return nil
	})
	g.Go(func() error {
		ctrl.reportStatus(ctx)
		return nil
	})
	if stick != nil {
		g.Go(func() error {
			keepRunning(ctx, "stick", stick.Run)
			return nil
		})
	}
	if player != nil {
		g.Go(func() error {
			if err := player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

// keepRunning runs one controller input. A failed input is logged and the
// rest of the pipeline keeps going: the bridge holds the last pose and the
// emitter goes idle.
func keepRunning(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Warn("input stopped, controller continues", "input", name, "error", err)
	}
}

func loadJournal(ctx context.Context, path string) ([]journal.Entry, error) {
	store, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	entries, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// reportStatus logs link statistics until ctx ends.
func (c *controller) reportStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			streamStats := c.client.Stats()
			senderStats := c.sender.Stats()
			last := c.bridge.Last()
			log.Info("link status",
				"snapshots", streamStats.Received,
				"decode_failures", streamStats.DecodeFailures,
				"connects", streamStats.Connects,
				"applied_seq", last.Seq,
				"commands_sent", senderStats.Sent,
				"commands_failed", senderStats.Failed,
				"ticks", c.loop.Ticks())
		}
	}
}
