package wm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/log"
)

// Config tunes the client's connection and reconnect behavior.
type Config struct {
	SocketPath        string // override; empty means discover via env/i3
	RequestTimeout    time.Duration
	HealthInterval    time.Duration
	HealthTimeout     time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	MaxReconnectTries int // 0 = unbounded
}

// DefaultConfig returns the spec's defaults: 5s request timeout, 5s health
// probe interval with a 2s timeout, 1s-to-60s exponential backoff.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    5 * time.Second,
		HealthInterval:    5 * time.Second,
		HealthTimeout:     2 * time.Second,
		ReconnectMinDelay: 1 * time.Second,
		ReconnectMaxDelay: 60 * time.Second,
		MaxReconnectTries: 0,
	}
}

// Client is a single persistent connection to the window-manager IPC
// socket: an async event stream plus a request/reply API, with automatic
// reconnection.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      net.Conn
	reqWriter *bufio.Writer
	connected bool

	events  chan Event
	kinds   []EventKind
	cancel  context.CancelFunc
	onReady func() // fired after (re)connect + resubscribe, before tree rebuild signal
}

// New constructs a Client. Call Subscribe to start the event stream and
// reconnect loop.
func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg = DefaultConfig()
	}
	return &Client{cfg: cfg, events: make(chan Event, 256)}
}

// DiscoverSocketPath resolves the WM socket path via I3SOCK/SWAYSOCK env
// vars, falling back to `i3 --get-socketpath`.
func DiscoverSocketPath() (string, error) {
	if p := os.Getenv("I3SOCK"); p != "" {
		return p, nil
	}
	if p := os.Getenv("SWAYSOCK"); p != "" {
		return p, nil
	}
	out, err := exec.Command("i3", "--get-socketpath").Output()
	if err != nil {
		return "", fmt.Errorf("wm: discovering socket path: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) socketPath() (string, error) {
	if c.cfg.SocketPath != "" {
		return c.cfg.SocketPath, nil
	}
	return DiscoverSocketPath()
}

func (c *Client) dial() error {
	path, err := c.socketPath()
	if err != nil {
		return err
	}
	conn, err := net.DialTimeout("unix", path, c.cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("wm: dialing %s: %w", path, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.reqWriter = bufio.NewWriter(conn)
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Connected reports whether the client currently believes it has a live
// connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) markDown() {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// Subscribe connects (if not already connected), subscribes to kinds, and
// starts the background reader + reconnect-on-failure + health-probe
// goroutines. The returned channel delivers events until ctx is canceled
// or Close is called.
func (c *Client) Subscribe(ctx context.Context, kinds ...EventKind) (<-chan Event, error) {
	c.kinds = kinds
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.dial(); err != nil {
		return nil, err
	}
	if err := c.subscribeLocked(runCtx); err != nil {
		return nil, err
	}

	log.SafeGo("wm-reader", func() { c.readLoop(runCtx) })
	log.SafeGo("wm-health-probe", func() { c.healthLoop(runCtx) })

	return c.events, nil
}

// subscribeLocked sends SUBSCRIBE on the primary (event-stream) connection
// — unlike Command/GetTree/GetOutputs/GetWorkspaces, which each use their
// own short-lived connection, subscription state belongs to the socket it
// was requested on.
func (c *Client) subscribeLocked(ctx context.Context) error {
	payload, err := json.Marshal(kindNames(c.kinds))
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn, w := c.conn, c.reqWriter
	c.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}
	if err := writeFrame(w, TypeSubscribe, payload); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err = readFrame(bufio.NewReader(conn))
	return err
}

func kindNames(kinds []EventKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// request sends a message on a fresh short-lived connection and waits for
// its reply — i3 permits any number of simultaneous client connections, so
// this avoids racing the persistent event-reading connection's reader.
func (c *Client) request(ctx context.Context, msgType MessageType, payload []byte) (frame, error) {
	path, err := c.socketPath()
	if err != nil {
		return frame{}, err
	}
	conn, err := net.DialTimeout("unix", path, c.cfg.RequestTimeout)
	if err != nil {
		return frame{}, fmt.Errorf("wm: dialing %s: %w", path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}

	w := bufio.NewWriter(conn)
	if err := writeFrame(w, msgType, payload); err != nil {
		return frame{}, err
	}
	if err := w.Flush(); err != nil {
		return frame{}, err
	}
	return readFrame(bufio.NewReader(conn))
}

// readLoop owns the persistent connection's event stream and drives
// reconnection with exponential backoff on any read error.
func (c *Client) readLoop(ctx context.Context) {
	r := bufio.NewReader(c.conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fr, err := readFrame(r)
		if err != nil {
			log.Warn(log.CatWM, "wm connection error", "error", err)
			c.markDown()
			if !c.reconnect(ctx) {
				return
			}
			r = bufio.NewReader(c.conn)
			continue
		}

		kind, ok := eventTypeCode[fr.msgType]
		if !ok {
			continue
		}
		var ev Event
		if err := json.Unmarshal(fr.payload, &ev); err != nil {
			log.Warn(log.CatWM, "wm event decode failed", "error", err)
			continue
		}
		ev.Kind = kind
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// reconnect retries dial+resubscribe with exponential backoff
// (ReconnectMinDelay * 2^n, capped at ReconnectMaxDelay) until success, ctx
// cancellation, or MaxReconnectTries is exhausted.
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.cfg.ReconnectMinDelay
	attempts := 0
	for {
		attempts++
		if c.cfg.MaxReconnectTries > 0 && attempts > c.cfg.MaxReconnectTries {
			log.Error(log.CatWM, "wm reconnect attempts exhausted", "attempts", attempts)
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := c.dial(); err == nil {
			if err := c.subscribeLocked(ctx); err == nil {
				log.Info(log.CatWM, "wm reconnected", "attempts", attempts)
				if c.onReady != nil {
					c.onReady()
				}
				return true
			}
		}

		delay *= 2
		if delay > c.cfg.ReconnectMaxDelay {
			delay = c.cfg.ReconnectMaxDelay
		}
	}
}

// OnReady registers a callback fired after every successful (re)connect,
// used by the dispatcher to rebuild its window index from a fresh tree
// fetch.
func (c *Client) OnReady(fn func()) { c.onReady = fn }

// healthLoop probes liveness every HealthInterval with a GetTree bounded
// by HealthTimeout; a failure marks the connection down and triggers
// reconnection via the read loop's own error path on its next I/O.
func (c *Client) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
			_, err := c.GetTree(probeCtx)
			cancel()
			if err != nil {
				log.Warn(log.CatWM, "wm health probe failed", "error", err)
				c.markDown()
			}
		}
	}
}

// Command sends a RUN_COMMAND request and returns i3's per-command
// success/error replies.
func (c *Client) Command(ctx context.Context, payload string) ([]CommandReply, error) {
	fr, err := c.request(ctx, TypeRunCommand, []byte(payload))
	if err != nil {
		return nil, err
	}
	return decodeCommandReplies(fr.payload)
}

// GetTree fetches the full container tree.
func (c *Client) GetTree(ctx context.Context) (*Node, error) {
	fr, err := c.request(ctx, TypeGetTree, nil)
	if err != nil {
		return nil, err
	}
	var n Node
	if err := json.Unmarshal(fr.payload, &n); err != nil {
		return nil, fmt.Errorf("wm: decoding tree: %w", err)
	}
	return &n, nil
}

// GetWorkspaces fetches the current workspace list.
func (c *Client) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	fr, err := c.request(ctx, TypeGetWorkspaces, nil)
	if err != nil {
		return nil, err
	}
	var ws []Workspace
	if err := json.Unmarshal(fr.payload, &ws); err != nil {
		return nil, fmt.Errorf("wm: decoding workspaces: %w", err)
	}
	return ws, nil
}

// GetOutputs fetches the current output list.
func (c *Client) GetOutputs(ctx context.Context) ([]Output, error) {
	fr, err := c.request(ctx, TypeGetOutputs, nil)
	if err != nil {
		return nil, err
	}
	var outs []Output
	if err := json.Unmarshal(fr.payload, &outs); err != nil {
		return nil, fmt.Errorf("wm: decoding outputs: %w", err)
	}
	return outs, nil
}

// Close cancels the reader and health-probe goroutines and closes the
// connection.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.connected = false
		return err
	}
	return nil
}
