package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/httpc"
	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/protocol"
)

// Sender delivers queued commands to the device one at a time, in order.
type Sender struct {
	baseURL    string
	queue      *handoff.Queue[protocol.Command]
	httpClient *http.Client
	log        *slog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSenderHTTPClient sets the HTTP client used for POST /state.
func WithSenderHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) {
		s.httpClient = client
	}
}

// NewSender creates a sender draining queue towards the device at baseURL.
func NewSender(baseURL string, queue *handoff.Queue[protocol.Command], opts ...SenderOption) *Sender {
	s := &Sender{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		queue:      queue,
		httpClient: httpc.Client,
		log:        log.Component("sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run waits for queued commands and posts them until ctx ends.
// Delivery failures are logged and counted; commands are never retried.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.queue.Ready():
		}

		for _, cmd := range s.queue.Drain() {
			if ctx.Err() != nil {
				return nil
			}
			if err := s.Send(ctx, cmd); err != nil {
				s.failed.Add(1)
				s.log.Warn("failed to send command", "kind", cmd.Kind, "error", err)
				continue
			}
			s.sent.Add(1)
		}
	}
}

// Send posts one command and waits for the device to answer.
func (s *Sender) Send(ctx context.Context, cmd protocol.Command) error {
	body, err := cmd.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.StateURL(s.baseURL), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

// SenderStats contains delivery statistics.
type SenderStats struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}

// Stats returns a point-in-time copy of the sender counters.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Sent:   s.sent.Load(),
		Failed: s.failed.Load(),
	}
}
