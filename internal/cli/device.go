package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/device"
	"github.com/teslashibe/go-woofer/pkg/journal"
)

var (
	deviceAddr      string
	deviceInterval  time.Duration
	deviceKeepAlive time.Duration
	deviceJournal   string
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Serve the device pose stream",
	Long: `Serves GET /state (SSE snapshot stream) and POST /state (command
envelopes) on the given address.

With --journal, every accepted command is recorded to a SQLite file that
"woofer journal" and "woofer controller --replay" can read back.`,
	RunE: runDevice,
}

func init() {
	deviceCmd.Flags().StringVar(&deviceAddr, "addr", config.DeviceAddr(), "listen address")
	deviceCmd.Flags().DurationVar(&deviceInterval, "interval", config.DefaultPublishInterval, "snapshot publish interval")
	deviceCmd.Flags().DurationVar(&deviceKeepAlive, "keepalive", config.DefaultKeepAlive, "keep-alive comment interval")
	deviceCmd.Flags().StringVar(&deviceJournal, "journal", config.JournalPath(), "SQLite command journal path (empty disables)")

	rootCmd.AddCommand(deviceCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []device.Option{
		device.WithPublishInterval(deviceInterval),
		device.WithKeepAlive(deviceKeepAlive),
	}

	if deviceJournal != "" {
		store, err := journal.Open(deviceJournal)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, device.WithJournal(store))
		log.Info("journal enabled", "path", deviceJournal)
	}

	srv := device.NewServer(device.NewState(), opts...)
	return serveUntilDone(ctx, srv, deviceAddr)
}

// serveUntilDone runs srv until ctx ends or the listener fails.
func serveUntilDone(ctx context.Context, srv *device.Server, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("device server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
