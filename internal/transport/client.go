// Package transport owns the Unix-socket connection to the sensor backend:
// connecting, the framed receive loop, reconnect with backoff, and sending.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/wire"
)

// DefaultSocketPath is where the backend listens unless configured otherwise.
const DefaultSocketPath = "/tmp/sensor_system.sock"

// DefaultMaxPayload bounds the payload size accepted from a single header.
// A larger declared size is treated as stream corruption.
const DefaultMaxPayload = 1 << 20

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Dialer opens the stream connection to path.
type Dialer func(ctx context.Context, path string) (net.Conn, error)

func dialUnix(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to an env logger prefixed [transport].
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBackoff sets the reconnect delay policy used by Run.
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithMaxPayload sets the largest payload size accepted from the backend.
func WithMaxPayload(n uint32) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPayload = n
		}
	}
}

// WithMetrics attaches prometheus metrics. nil disables them.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEventBuffer sets how many readings and status events may wait for the
// consumer. While the queue is full new ones are discarded and counted in
// metrics; a dropped readings batch never reaches the processor, so its
// samples are missing from every window and export. Connection events are
// always queued. Values below 1 keep DefaultEventBuffer.
func WithEventBuffer(n int) Option {
	return func(c *Client) { c.eventBuffer = n }
}

// WithDialer replaces the Unix-socket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// Client is a connection to the sensor backend. All methods are safe for
// concurrent use. Received frames are delivered on Events.
type Client struct {
	path        string
	log         logger.Logger
	backoff     Backoff
	maxPayload  uint32
	metrics     *Metrics
	eventBuffer int
	dial        Dialer
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time

	state  atomic.Int32
	events *eventQueue

	// connectMu serializes dial attempts.
	connectMu sync.Mutex
	// sendMu keeps whole frames from interleaving on the socket.
	sendMu sync.Mutex

	mu        sync.Mutex
	conn      net.Conn
	session   string
	loopDone  chan struct{}
	runCancel context.CancelFunc
	runDone   chan struct{}
	closed    bool
	// stops is bumped by every Disconnect; a dial that started under an
	// older value is abandoned.
	stops      uint64
	dialCancel context.CancelFunc
}

// New creates a disconnected client for the socket at path.
func New(path string, opts ...Option) *Client {
	if path == "" {
		path = DefaultSocketPath
	}
	c := &Client{
		path:       path,
		backoff:    DefaultBackoff(),
		maxPayload: DefaultMaxPayload,
		dial:       dialUnix,
		now:        time.Now,
		after:      time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewEnvLogger("[transport]")
	}
	c.events = newEventQueue(c.eventBuffer)
	return c
}

// Path returns the socket path the client dials.
func (c *Client) Path() string { return c.path }

// Events returns the channel notifications are delivered on. It is closed
// after Close once every pending event has been delivered.
func (c *Client) Events() <-chan Event { return c.events.out }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool { return c.State() == StateConnected }

// Connect dials the backend once and starts the receive loop. Failure is
// returned to the caller and leaves the client disconnected; it is safe to
// call Connect again. Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

func (c *Client) connect(ctx context.Context) (<-chan struct{}, error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn != nil {
		done := c.loopDone
		c.mu.Unlock()
		return done, nil
	}
	stops := c.stops
	dialCtx, cancel := context.WithCancel(ctx)
	c.dialCancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.dialCancel = nil
		c.mu.Unlock()
	}()

	c.state.Store(int32(StateConnecting))
	conn, err := c.dial(dialCtx, c.path)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		if c.disconnectedSince(stops) {
			return nil, ErrNotConnected
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Cannot connect to %s", c.path),
			"Make sure the sensor backend is running, or start one with: sensord simulate")
	}

	session := uuid.NewString()
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed || c.stops != stops {
		closed := c.closed
		c.mu.Unlock()
		_ = conn.Close()
		c.state.Store(int32(StateDisconnected))
		if closed {
			return nil, ErrClosed
		}
		return nil, ErrNotConnected
	}
	c.conn = conn
	c.session = session
	c.loopDone = done
	c.state.Store(int32(StateConnected))
	c.mu.Unlock()

	c.metrics.setConnected(true)
	c.log.Info("connected to %s (session %s)", c.path, session)
	c.events.push(Event{Kind: EventConnected, Session: session, Time: c.now()})

	go c.receiveLoop(conn, session, done)
	return done, nil
}

// Run keeps the client connected until ctx is cancelled or Disconnect is
// called. Every lost or failed connection is followed by a backoff delay
// before the next attempt; there is no retry limit. Run returns nil when
// stopped, or ErrClosed if the client was closed.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	if c.runCancel != nil {
		c.mu.Unlock()
		cancel()
		return errors.New(errors.ErrState, "Transport is already running", "")
	}
	c.runCancel = cancel
	c.runDone = runDone
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.runCancel = nil
		c.runDone = nil
		c.mu.Unlock()
		close(runDone)
	}()

	attempt := 0
	for {
		lost, err := c.connect(ctx)
		switch {
		case err == nil:
			attempt = 0
			select {
			case <-lost:
			case <-ctx.Done():
				c.dropCurrent()
				return nil
			}
		case err == ErrClosed:
			return err
		case ctx.Err() != nil:
			return nil
		default:
			c.log.Warn("%v", err)
		}

		delay := c.backoff.Delay(attempt)
		attempt++
		c.metrics.reconnectAttempt()
		c.log.Info("reconnecting in %s (attempt %d)", delay, attempt)

		select {
		case <-c.after(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// Send writes one frame. Concurrent senders never interleave frames. A
// write failure tears the connection down; the frame is not retried.
func (c *Client) Send(t wire.MessageType, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := wire.EncodeFrame(t, payload)

	c.sendMu.Lock()
	_, err := conn.Write(frame)
	c.sendMu.Unlock()

	if err != nil {
		c.drop(conn, err)
		return errors.Wrap(err, fmt.Sprintf("Send of %s frame failed", t))
	}
	c.log.Debug("sent %s frame (%d bytes)", t, len(payload))
	return nil
}

// Disconnect stops Run if it is active, closes the socket and waits for the
// receive loop to exit. It is idempotent and may be called from any
// goroutine, including while a read is blocked.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stops++
	if c.dialCancel != nil {
		c.dialCancel()
	}
	cancel, runDone := c.runCancel, c.runDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-runDone
	}
	c.dropCurrent()
}

// Close disconnects and releases the client. Events is closed once pending
// events have been delivered. Further Connect or Run calls return ErrClosed.
func (c *Client) Close() error {
	c.Disconnect()

	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()

	if !already {
		c.events.close()
	}
	return nil
}

// disconnectedSince reports whether Disconnect ran after stops was read.
func (c *Client) disconnectedSince(stops uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops != stops
}

// dropCurrent tears down the live connection, if any, and waits for its
// receive loop to finish.
func (c *Client) dropCurrent() {
	c.mu.Lock()
	conn, done := c.conn, c.loopDone
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.drop(conn, nil)
	<-done
}

// drop closes conn if it is still the live connection. Only the first caller
// for a given conn emits the disconnect event.
func (c *Client) drop(conn net.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.conn = nil
	c.session = ""
	c.state.Store(int32(StateDisconnected))
	c.mu.Unlock()

	_ = conn.Close()
	c.metrics.setConnected(false)

	if cause != nil {
		c.log.Warn("connection lost (session %s): %v", session, cause)
	} else {
		c.log.Info("disconnected (session %s)", session)
	}
	c.events.push(Event{Kind: EventDisconnected, Session: session, Err: cause, Time: c.now()})
}

func (c *Client) receiveLoop(conn net.Conn, session string, done chan struct{}) {
	defer close(done)

	// When Disconnect closed conn under a blocked read, the resulting error
	// lands here and drop ignores it because conn is no longer live.
	c.drop(conn, c.readFrames(conn, session))
}

// readFrames reads until the peer closes (nil) or the stream fails. Header and
// payload are each read in full across partial reads, so no bytes from one
// frame can leak into the next.
func (c *Client) readFrames(conn net.Conn, session string) error {
	var hdr [wire.HeaderSize]byte
	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		h, err := wire.ParseHeader(hdr[:])
		if err != nil {
			return err
		}
		if h.PayloadSize > c.maxPayload {
			c.metrics.frameDropped("oversize")
			c.log.Error("frame type=%s size=%d exceeds limit of %d bytes; resetting connection",
				h.Type, h.PayloadSize, c.maxPayload)
			return fmt.Errorf("%w: %d bytes", wire.ErrPayloadTooLarge, h.PayloadSize)
		}

		payload := make([]byte, h.PayloadSize)
		if _, err := io.ReadFull(conn, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}

		c.metrics.frameReceived(h.Type.String(), wire.HeaderSize+len(payload))
		c.handleFrame(session, h, payload)
	}
}

func (c *Client) handleFrame(session string, h wire.Header, payload []byte) {
	now := c.now()
	msg, err := wire.Decode(h.Type, payload, now)
	if err != nil {
		c.metrics.frameDropped("malformed")
		c.log.Warn("dropping frame type=%s size=%d: %v", h.Type, h.PayloadSize, err)
		return
	}

	var ev Event
	switch h.Type {
	case wire.MsgSensorData, wire.MsgSensorList:
		ev = Event{Kind: EventReadings, Readings: msg.Readings}
	case wire.MsgStatus:
		c.log.Info("backend status: %s", msg.Status)
		ev = Event{Kind: EventStatus, Status: msg.Status}
	default:
		c.log.Debug("ignoring frame type=%s size=%d", h.Type, h.PayloadSize)
		return
	}

	ev.Session = session
	ev.Type = h.Type
	ev.Time = now
	if !c.events.push(ev) {
		c.metrics.eventDropped()
		c.log.Debug("consumer behind; dropped %s event", ev.Kind)
	}
}
