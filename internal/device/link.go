// Package device talks to the camera through a websocket bridge. The bridge
// owns pairing with the camera; every binary message it sends is one raw
// notification, and every binary message written to it is a control command.
package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Control commands understood by the camera.
const (
	// CommandCaptureOnce takes a single photo.
	CommandCaptureOnce byte = 0xFF
	// CommandCaptureInterval starts periodic capture.
	CommandCaptureInterval byte = 0x05
)

// ErrNotConnected is returned by Send while no bridge connection is open.
var ErrNotConnected = errors.New("device link not connected")

// Handler receives notifications in arrival order on the link's read loop.
// The slice is owned by the handler.
type Handler func(data []byte)

// BackoffConfig shapes reconnect delays.
type BackoffConfig struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// Config configures a Link.
type Config struct {
	// URL of the bridge websocket, e.g. ws://localhost:9000/notify.
	URL string
	// HandshakeTimeout bounds a single dial. Default: 10s.
	HandshakeTimeout time.Duration
	// MaxAttempts stops Run after this many consecutive failed dials.
	// Zero retries forever.
	MaxAttempts int
	Backoff     BackoffConfig
}

// DefaultConfig returns a Config for url with default timings.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		Backoff: BackoffConfig{
			InitialWait: 500 * time.Millisecond,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// Stats counts link activity.
type Stats struct {
	Connects uint64 `json:"connects"`
	Messages uint64 `json:"messages"`
	Bytes    uint64 `json:"bytes"`
}

// Option configures a Link.
type Option func(*Link)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(link *Link) { link.logger = l }
}

// WithHeader adds headers sent on every dial.
func WithHeader(h http.Header) Option {
	return func(link *Link) { link.header = h }
}

// Link is a reconnecting client for the bridge.
type Link struct {
	cfg    Config
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	ready chan struct{} // closed while connected

	writeMu sync.Mutex

	connects atomic.Uint64
	messages atomic.Uint64
	bytes    atomic.Uint64
}

// NewLink creates an unconnected Link.
func NewLink(cfg Config, opts ...Option) *Link {
	def := DefaultConfig(cfg.URL)
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.Backoff.InitialWait <= 0 {
		cfg.Backoff.InitialWait = def.Backoff.InitialWait
	}
	if cfg.Backoff.MaxWait <= 0 {
		cfg.Backoff.MaxWait = def.Backoff.MaxWait
	}
	if cfg.Backoff.Multiplier < 1 {
		cfg.Backoff.Multiplier = def.Backoff.Multiplier
	}

	l := &Link{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger: zap.NewNop(),
		ready:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With(zap.String("component", "device"), zap.String("url", cfg.URL))
	return l
}

// Run connects to the bridge and delivers notifications to handle until ctx
// is cancelled, reconnecting with backoff when the connection drops. It
// returns nil on cancellation, or the last dial error once MaxAttempts
// consecutive dials have failed.
func (l *Link) Run(ctx context.Context, handle Handler) error {
	failures := 0
	for {
		conn, _, err := l.dialer.DialContext(ctx, l.cfg.URL, l.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if l.cfg.MaxAttempts > 0 && failures >= l.cfg.MaxAttempts {
				return fmt.Errorf("dial %s: %w", l.cfg.URL, err)
			}
			wait := l.backoff(failures - 1)
			l.logger.Warn("bridge dial failed",
				zap.Int("attempt", failures),
				zap.Duration("retry_in", wait),
				zap.Error(err))
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		failures = 0
		l.connects.Add(1)
		l.setConn(conn)
		l.logger.Info("bridge connected")

		err = l.readLoop(ctx, conn, handle)
		l.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("bridge disconnected", zap.Error(err))
		if !sleep(ctx, l.cfg.Backoff.InitialWait) {
			return nil
		}
	}
}

// Send writes a control command to the bridge.
func (l *Link) Send(ctx context.Context, cmd byte) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline := time.Now().Add(l.cfg.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{cmd}); err != nil {
		return fmt.Errorf("send command 0x%02X: %w", cmd, err)
	}
	l.logger.Debug("command sent", zap.Uint8("command", cmd))
	return nil
}

// CaptureOnce asks the camera for one photo.
func (l *Link) CaptureOnce(ctx context.Context) error {
	return l.Send(ctx, CommandCaptureOnce)
}

// CaptureInterval asks the camera to start periodic capture.
func (l *Link) CaptureInterval(ctx context.Context) error {
	return l.Send(ctx, CommandCaptureInterval)
}

// Connected reports whether a bridge connection is open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// WaitConnected blocks until a connection is open or ctx is done.
func (l *Link) WaitConnected(ctx context.Context) error {
	l.mu.Lock()
	ready := l.ready
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns link counters.
func (l *Link) Stats() Stats {
	return Stats{
		Connects: l.connects.Load(),
		Messages: l.messages.Load(),
		Bytes:    l.bytes.Load(),
	}
}

func (l *Link) setConn(conn *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = conn
	if conn != nil {
		close(l.ready)
	} else {
		l.ready = make(chan struct{})
	}
}

func (l *Link) readLoop(ctx context.Context, conn *websocket.Conn, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind != websocket.BinaryMessage {
			l.logger.Debug("ignoring non-binary message", zap.Int("type", kind))
			continue
		}
		l.messages.Add(1)
		l.bytes.Add(uint64(len(data)))
		if handle != nil {
			handle(data)
		}
	}
}

// backoff returns the wait before retry number attempt (0-based), with
// jitter of up to 25%.
func (l *Link) backoff(attempt int) time.Duration {
	b := l.cfg.Backoff
	wait := float64(b.InitialWait) * math.Pow(b.Multiplier, float64(attempt))
	if wait > float64(b.MaxWait) {
		wait = float64(b.MaxWait)
	}
	jitter := wait * 0.25 * rand.Float64()
	return time.Duration(wait + jitter)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
