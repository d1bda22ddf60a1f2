// Package testing provides a fake sensor backend for exercising the transport
// over a real Unix socket, plus a reading simulator that drives it.
package testing

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/wire"
)

// Frame is a frame received from a client.
type Frame struct {
	Type    wire.MessageType
	Payload []byte
}

// Backend listens on a Unix socket and speaks the sensor wire format.
type Backend struct {
	path string
	ln   net.Listener
	log  logger.Logger

	mu       sync.Mutex
	clients  map[net.Conn]struct{}
	accepted int
	received []Frame
	closed   bool

	// changed is closed and replaced whenever client or frame state changes.
	changed chan struct{}
	wg      sync.WaitGroup

	// OnConnect, if set, is called for each accepted client before it is
	// added to the broadcast set.
	OnConnect func(conn net.Conn)
}

// NewBackend listens on path, removing a stale socket file first.
func NewBackend(path string) (*Backend, error) {
	return NewBackendWithLogger(path, logger.Noop())
}

// NewBackendWithLogger is NewBackend with an explicit logger.
func NewBackendWithLogger(path string, log logger.Logger) (*Backend, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			"Cannot listen on "+path,
			"Check that the directory exists and no other backend is running")
	}

	b := &Backend{
		path:    path,
		ln:      ln,
		log:     logger.OrDefault(log),
		clients: make(map[net.Conn]struct{}),
		changed: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.acceptLoop()
	return b, nil
}

// Path returns the socket path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *Backend) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		if b.OnConnect != nil {
			b.OnConnect(conn)
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			_ = conn.Close()
			return
		}
		b.clients[conn] = struct{}{}
		b.accepted++
		b.notifyLocked()
		b.mu.Unlock()

		b.log.Info("client connected (%d total)", b.Accepted())
		b.wg.Add(1)
		go b.readLoop(conn)
	}
}

func (b *Backend) readLoop(conn net.Conn) {
	defer b.wg.Done()
	defer b.remove(conn)

	var hdr [wire.HeaderSize]byte
	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		h, err := wire.ParseHeader(hdr[:])
		if err != nil {
			return
		}
		payload := make([]byte, h.PayloadSize)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		b.mu.Lock()
		b.received = append(b.received, Frame{Type: h.Type, Payload: payload})
		b.notifyLocked()
		b.mu.Unlock()
	}
}

func (b *Backend) remove(conn net.Conn) {
	_ = conn.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		b.notifyLocked()
	}
}

// waitFor blocks until cond holds or timeout elapses.
func (b *Backend) waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		b.mu.Lock()
		ok := cond()
		ch := b.changed
		b.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
	}
}

// WaitForClients waits until at least n clients are connected.
func (b *Backend) WaitForClients(n int, timeout time.Duration) bool {
	return b.waitFor(timeout, func() bool { return len(b.clients) >= n })
}

// WaitForAccepted waits until n connections have been accepted in total.
func (b *Backend) WaitForAccepted(n int, timeout time.Duration) bool {
	return b.waitFor(timeout, func() bool { return b.accepted >= n })
}

// WaitForNoClients waits until every client has gone away.
func (b *Backend) WaitForNoClients(timeout time.Duration) bool {
	return b.waitFor(timeout, func() bool { return len(b.clients) == 0 })
}

// WaitForFrames waits until at least n frames have been received.
func (b *Backend) WaitForFrames(n int, timeout time.Duration) bool {
	return b.waitFor(timeout, func() bool { return len(b.received) >= n })
}

// Clients returns the number of connected clients.
func (b *Backend) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Accepted returns how many connections have been accepted in total.
func (b *Backend) Accepted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted
}

// Received returns a copy of the frames clients have sent.
func (b *Backend) Received() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.received))
	copy(out, b.received)
	return out
}

// Broadcast sends one frame to every connected client.
func (b *Backend) Broadcast(t wire.MessageType, payload []byte) error {
	return b.WriteRaw(wire.EncodeFrame(t, payload))
}

// BroadcastReadings sends a SENSOR_DATA frame.
func (b *Backend) BroadcastReadings(readings []wire.Reading) error {
	return b.Broadcast(wire.MsgSensorData, wire.EncodeSensorData(readings))
}

// WriteRaw writes arbitrary bytes to every client. Tests use it to split
// frames across writes or to send corrupt data.
func (b *Backend) WriteRaw(p []byte) error {
	b.mu.Lock()
	conns := make([]net.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if _, err := c.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DropClients closes every client connection, simulating a backend restart
// without closing the listener.
func (b *Backend) DropClients() {
	b.mu.Lock()
	conns := make([]net.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Close stops the listener, disconnects all clients and removes the socket.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.ln.Close()
	b.DropClients()
	b.wg.Wait()
	_ = os.Remove(b.path)
	return err
}
