// Package stream subscribes to a device's snapshot stream and hands every
// decoded snapshot to the synchronous side through a hand-off queue.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/httpc"
	"github.com/teslashibe/go-woofer/internal/log"
	"github.com/teslashibe/go-woofer/pkg/handoff"
	"github.com/teslashibe/go-woofer/pkg/pose"
)

// DefaultReconnectInterval is the wait between reconnection attempts.
const DefaultReconnectInterval = time.Second

// Client maintains one SSE subscription to GET <base>/state.
type Client struct {
	baseURL    string
	queue      *handoff.Queue[pose.Snapshot]
	httpClient *http.Client
	log        *slog.Logger

	reconnect            bool
	reconnectInterval    time.Duration
	maxReconnectAttempts int // 0 = unlimited
	stopOnDecodeError    bool

	received       atomic.Uint64
	decodeFailures atomic.Uint64
	connects       atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the subscription.
// It must not have an overall timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithReconnectInterval sets the wait between reconnection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) {
		c.reconnectInterval = d
	}
}

// WithMaxReconnectAttempts caps consecutive failed subscriptions.
// Set to 0 for unlimited attempts.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Client) {
		c.maxReconnectAttempts = n
	}
}

// WithoutReconnect makes Run return after the first subscription ends.
func WithoutReconnect() Option {
	return func(c *Client) {
		c.reconnect = false
	}
}

// WithStopOnDecodeError ends the subscription on the first event that is not
// a valid snapshot instead of skipping it.
func WithStopOnDecodeError() Option {
	return func(c *Client) {
		c.stopOnDecodeError = true
	}
}

// NewClient creates a stream client that pushes snapshots into queue.
func NewClient(baseURL string, queue *handoff.Queue[pose.Snapshot], opts ...Option) *Client {
	c := &Client{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		queue:             queue,
		httpClient:        httpc.Stream,
		log:               log.Component("stream"),
		reconnect:         true,
		reconnectInterval: DefaultReconnectInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run subscribes until ctx is canceled or the reconnect policy gives up.
// It returns nil when ctx ends.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := c.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrDecode) {
			c.log.Error("subscription stopped", "error", err)
			return err
		}
		c.log.Warn("subscription ended", "error", err)

		if !c.reconnect {
			return err
		}

		if connected {
			attempts = 0
		}
		attempts++
		if c.maxReconnectAttempts > 0 && attempts >= c.maxReconnectAttempts {
			return fmt.Errorf("%w (%d): %v", ErrReconnectExhausted, c.maxReconnectAttempts, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectInterval):
		}
	}
}

// subscribe runs one subscription. connected reports whether the device
// accepted it. The returned error is never nil.
func (c *Client) subscribe(ctx context.Context) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.StateURL(c.baseURL), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, string(body))
	}

	c.connects.Add(1)
	c.log.Info("subscribed", "url", req.URL.String())

	if err := c.readEvents(resp.Body); err != nil {
		return true, err
	}
	return true, fmt.Errorf("stream closed by device: %w", io.EOF)
}

// readEvents parses the SSE body until it ends. A clean end of stream
// returns nil.
func (c *Client) readEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4*1024), 64*1024)

	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if len(data) == 0 {
				continue
			}
			payload := strings.Join(data, "\n")
			data = data[:0]
			if err := c.dispatch(payload); err != nil {
				return err
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment (keep-alive)
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line, "data:"))
		}
		// event:, id: and retry: are not used by the device
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func (c *Client) dispatch(payload string) error {
	snap, err := pose.Decode([]byte(payload))
	if err != nil {
		c.decodeFailures.Add(1)
		if c.stopOnDecodeError {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		c.log.Warn("skipping malformed event", "error", err)
		return nil
	}

	c.received.Add(1)
	c.queue.Push(snap)
	return nil
}

// Stats contains subscription statistics.
type Stats struct {
	Received       uint64 `json:"received"`
	DecodeFailures uint64 `json:"decode_failures"`
	Connects       uint64 `json:"connects"`
}

// Stats returns a point-in-time copy of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Received:       c.received.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		Connects:       c.connects.Load(),
	}
}
