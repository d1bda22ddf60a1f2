package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sensorerrors "github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	tstesting "github.com/rileyhilliard/sensord/internal/transport/testing"
	"github.com/rileyhilliard/sensord/internal/wire"
)

const waitTimeout = 2 * time.Second

var sampleTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "sensor.sock")
}

func startBackend(t *testing.T) *tstesting.Backend {
	t.Helper()
	b, err := tstesting.NewBackend(socketPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newClient(t *testing.T, path string, opts ...Option) (*Client, *logger.BufferLogger) {
	t.Helper()
	log := logger.NewBufferLogger()
	c := New(path, append([]Option{WithLogger(log)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, log
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectEvent(t *testing.T, c *Client, kind EventKind) Event {
	t.Helper()
	ev := nextEvent(t, c)
	require.Equal(t, kind, ev.Kind, "unexpected event %+v", ev)
	return ev
}

func connectClient(t *testing.T, c *Client, b *tstesting.Backend) Event {
	t.Helper()
	require.NoError(t, c.Connect(context.Background()))
	require.True(t, b.WaitForClients(1, waitTimeout))
	return expectEvent(t, c, EventConnected)
}

// manualClock replaces time.After so reconnect delays can be asserted and
// released deterministically.
type manualClock struct {
	mu     sync.Mutex
	delays []time.Duration
	fire   chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{fire: make(chan time.Time)}
}

func (m *manualClock) after(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	m.delays = append(m.delays, d)
	m.mu.Unlock()
	return m.fire
}

func (m *manualClock) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}

func (m *manualClock) waitForDelays(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(m.Delays()) >= n }, waitTimeout, 5*time.Millisecond)
}

func withClock(m *manualClock) Option {
	return func(c *Client) { c.after = m.after }
}

func TestConnect_NoBackend(t *testing.T) {
	c, _ := newClient(t, socketPath(t))

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, sensorerrors.IsConnection(err))
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Connected())
}

func TestConnect_ReceivesReadings(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())

	connected := connectClient(t, c, b)
	assert.NotEmpty(t, connected.Session)
	assert.True(t, c.Connected())

	readings := []wire.Reading{
		wire.NewReading(0x40, "kitchen", 22.5, 55, true, sampleTime),
		wire.NewReading(0x41, "garage", 12.25, 70, false, sampleTime),
	}
	require.NoError(t, b.BroadcastReadings(readings))

	ev := expectEvent(t, c, EventReadings)
	assert.Equal(t, connected.Session, ev.Session)
	assert.Equal(t, wire.MsgSensorData, ev.Type)
	require.Len(t, ev.Readings, 2)
	assert.Equal(t, "sensor_40", ev.Readings[0].ID)
	assert.Equal(t, "kitchen", ev.Readings[0].Name)
	assert.Equal(t, float32(12.25), ev.Readings[1].Temperature)
	assert.False(t, ev.Readings[1].Active)
}

func TestConnect_IsNoopWhenConnected(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, b.Accepted())
}

func TestReceive_FrameSplitAcrossWrites(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	frame := wire.EncodeFrame(wire.MsgSensorData, wire.EncodeSensorData([]wire.Reading{
		wire.NewReading(0x42, "attic", 30, 20, true, sampleTime),
	}))

	// Split inside the header, then inside the payload.
	chunks := [][]byte{frame[:3], frame[3:20], frame[20:]}
	for _, chunk := range chunks {
		require.NoError(t, b.WriteRaw(chunk))
		time.Sleep(20 * time.Millisecond)
	}

	ev := expectEvent(t, c, EventReadings)
	require.Len(t, ev.Readings, 1)
	assert.Equal(t, "attic", ev.Readings[0].Name)
	assert.Equal(t, float32(30), ev.Readings[0].Temperature)
}

func TestReceive_BackToBackFrames(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	var raw []byte
	raw = append(raw, wire.EncodeFrame(wire.MsgStatus, wire.EncodeStatus("warming up"))...)
	raw = append(raw, wire.EncodeFrame(wire.MsgSensorData, wire.EncodeSensorData([]wire.Reading{
		wire.NewReading(0x40, "a", 1, 2, true, sampleTime),
	}))...)
	require.NoError(t, b.WriteRaw(raw))

	status := expectEvent(t, c, EventStatus)
	assert.Equal(t, "warming up", status.Status)

	ev := expectEvent(t, c, EventReadings)
	require.Len(t, ev.Readings, 1)
}

func TestReceive_MalformedFrameKeepsConnection(t *testing.T) {
	b := startBackend(t)
	c, log := newClient(t, b.Path())
	connectClient(t, c, b)

	require.NoError(t, b.Broadcast(wire.MsgSensorData, make([]byte, 74)))
	require.NoError(t, b.Broadcast(wire.MsgStatus, []byte{0xc3, 0x28}))
	require.NoError(t, b.BroadcastReadings([]wire.Reading{
		wire.NewReading(0x40, "ok", 21, 50, true, sampleTime),
	}))

	ev := expectEvent(t, c, EventReadings)
	require.Len(t, ev.Readings, 1)
	assert.True(t, c.Connected())
	assert.True(t, log.Contains("warn", "dropping frame type=SENSOR_DATA size=74"))
	assert.True(t, log.Contains("warn", "dropping frame type=STATUS size=2"))
}

func TestReceive_UnknownTypeIgnored(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	require.NoError(t, b.Broadcast(wire.MessageType(99), []byte("opaque")))
	require.NoError(t, b.Broadcast(wire.MsgControl, []byte{1}))
	require.NoError(t, b.Broadcast(wire.MsgStatus, wire.EncodeStatus("after")))

	ev := expectEvent(t, c, EventStatus)
	assert.Equal(t, "after", ev.Status)
	assert.True(t, c.Connected())
}

func TestReceive_PeerCloseDisconnects(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connected := connectClient(t, c, b)

	b.DropClients()

	ev := expectEvent(t, c, EventDisconnected)
	assert.Equal(t, connected.Session, ev.Session)
	assert.NoError(t, ev.Err, "orderly close carries no error")
	assert.Equal(t, StateDisconnected, c.State())
}

func TestReceive_PeerCloseMidFrame(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	frame := wire.EncodeFrame(wire.MsgSensorData, make([]byte, wire.RecordSize))
	require.NoError(t, b.WriteRaw(frame[:wire.HeaderSize+10]))
	time.Sleep(20 * time.Millisecond)
	b.DropClients()

	ev := expectEvent(t, c, EventDisconnected)
	assert.ErrorIs(t, ev.Err, io.ErrUnexpectedEOF)
}

func TestReceive_OversizePayloadResetsConnection(t *testing.T) {
	b := startBackend(t)
	c, log := newClient(t, b.Path(), WithMaxPayload(wire.RecordSize))
	connectClient(t, c, b)

	hdr := wire.AppendHeader(nil, wire.Header{Type: wire.MsgSensorData, PayloadSize: 4096})
	require.NoError(t, b.WriteRaw(hdr))

	ev := expectEvent(t, c, EventDisconnected)
	assert.ErrorIs(t, ev.Err, wire.ErrPayloadTooLarge)
	assert.True(t, log.Contains("error", "size=4096"))
}

func TestSend(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())

	err := c.Send(wire.MsgControl, []byte{1})
	assert.ErrorIs(t, err, ErrNotConnected)

	connectClient(t, c, b)
	require.NoError(t, c.Send(wire.MsgControl, []byte{0xAA, 0xBB}))
	require.NoError(t, c.Send(wire.MsgStatus, wire.EncodeStatus("ping")))

	require.True(t, b.WaitForFrames(2, waitTimeout))
	frames := b.Received()
	assert.Equal(t, tstesting.Frame{Type: wire.MsgControl, Payload: []byte{0xAA, 0xBB}}, frames[0])
	assert.Equal(t, wire.MsgStatus, frames[1].Type)
	assert.Equal(t, "ping", string(frames[1].Payload))
}

func TestSend_ConcurrentFramesDoNotInterleave(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	const senders, perSender = 4, 25
	payload := make([]byte, 512)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				assert.NoError(t, c.Send(wire.MsgControl, payload))
			}
		}()
	}
	wg.Wait()

	require.True(t, b.WaitForFrames(senders*perSender, waitTimeout))
	for _, f := range b.Received() {
		assert.Equal(t, wire.MsgControl, f.Type)
		assert.Len(t, f.Payload, 512)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Disconnect()
		}()
	}
	wg.Wait()
	c.Disconnect()

	ev := expectEvent(t, c, EventDisconnected)
	assert.NoError(t, ev.Err)
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, b.WaitForNoClients(waitTimeout))

	select {
	case extra := <-c.Events():
		t.Fatalf("unexpected extra event %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnect_WhileNeverConnected(t *testing.T) {
	c, _ := newClient(t, socketPath(t))
	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisconnect_DuringDialAbandonsConnection(t *testing.T) {
	b := startBackend(t)

	dialing := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	slowDial := func(ctx context.Context, path string) (net.Conn, error) {
		first.Do(func() {
			close(dialing)
			<-release
		})
		return dialUnix(context.Background(), path)
	}
	c, _ := newClient(t, b.Path(), WithDialer(slowDial))

	result := make(chan error, 1)
	go func() { result <- c.Connect(context.Background()) }()

	<-dialing
	c.Disconnect()
	close(release)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(waitTimeout):
		t.Fatal("Connect did not return")
	}
	assert.Equal(t, StateDisconnected, c.State())

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// The client stays usable.
	connectClient(t, c, b)
}

func TestDisconnect_CancelsPendingDial(t *testing.T) {
	dialing := make(chan struct{})
	waitForCancel := func(ctx context.Context, path string) (net.Conn, error) {
		close(dialing)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c, _ := newClient(t, socketPath(t), WithDialer(waitForCancel))

	result := make(chan error, 1)
	go func() { result <- c.Connect(context.Background()) }()

	<-dialing
	c.Disconnect()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(waitTimeout):
		t.Fatal("Disconnect did not cancel the dial")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestRun_ReconnectsAfterBackoff(t *testing.T) {
	b := startBackend(t)
	clock := newManualClock()
	c, _ := newClient(t, b.Path(), withClock(clock), WithBackoff(FixedBackoff(2*time.Second)))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	expectEvent(t, c, EventConnected)
	require.True(t, b.WaitForClients(1, waitTimeout))

	b.DropClients()
	expectEvent(t, c, EventDisconnected)

	clock.waitForDelays(t, 1)
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Delays())

	// No reconnect until the backoff elapses.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, b.Accepted())

	clock.fire <- time.Now()
	expectEvent(t, c, EventConnected)
	require.True(t, b.WaitForAccepted(2, waitTimeout))

	c.Disconnect()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after Disconnect")
	}
	expectEvent(t, c, EventDisconnected)
}

func TestRun_BackoffGrowsWhileBackendDown(t *testing.T) {
	clock := newManualClock()
	c, log := newClient(t, socketPath(t), withClock(clock), WithBackoff(Backoff{
		Initial:    time.Second,
		Max:        4 * time.Second,
		Multiplier: 2,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for i := 1; i <= 4; i++ {
		clock.waitForDelays(t, i)
		if i < 4 {
			clock.fire <- time.Now()
		}
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second,
	}, clock.Delays())
	assert.True(t, log.HasLevel("warn"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRun_RejectsSecondRun(t *testing.T) {
	clock := newManualClock()
	c, _ := newClient(t, socketPath(t), withClock(clock))

	go func() { _ = c.Run(context.Background()) }()
	clock.waitForDelays(t, 1)

	err := c.Run(context.Background())
	assert.True(t, sensorerrors.IsCode(err, sensorerrors.ErrState))
	c.Disconnect()
}

func TestClose(t *testing.T) {
	b := startBackend(t)
	c, _ := newClient(t, b.Path())
	connectClient(t, c, b)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	expectEvent(t, c, EventDisconnected)
	_, ok := <-c.Events()
	assert.False(t, ok, "events channel should be closed")

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	assert.True(t, errors.Is(c.Run(context.Background()), ErrClosed))
}

func TestEvents_DataDroppedWhenConsumerLags(t *testing.T) {
	b := startBackend(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, _ := newClient(t, b.Path(), WithEventBuffer(2), WithMetrics(m))

	require.NoError(t, c.Connect(context.Background()))
	require.True(t, b.WaitForClients(1, waitTimeout))

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Broadcast(wire.MsgStatus, wire.EncodeStatus("tick")))
	}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.framesReceived.WithLabelValues("STATUS")) == 10
	}, waitTimeout, 5*time.Millisecond)

	// Connectivity events are never dropped even with a full queue.
	b.DropClients()
	require.Eventually(t, func() bool { return !c.Connected() }, waitTimeout, 5*time.Millisecond)

	var kinds []EventKind
	for len(kinds) == 0 || kinds[len(kinds)-1] != EventDisconnected {
		kinds = append(kinds, nextEvent(t, c).Kind)
	}
	assert.Equal(t, EventConnected, kinds[0])
	assert.Less(t, len(kinds), 12)
	assert.Greater(t, testutil.ToFloat64(m.eventsDropped), float64(0))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.connected))
}

func TestEvents_LargerBufferKeepsBurst(t *testing.T) {
	b := startBackend(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, _ := newClient(t, b.Path(), WithEventBuffer(64), WithMetrics(m))

	require.NoError(t, c.Connect(context.Background()))
	require.True(t, b.WaitForClients(1, waitTimeout))

	for i := 0; i < 40; i++ {
		require.NoError(t, b.Broadcast(wire.MsgStatus, wire.EncodeStatus("tick")))
	}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.framesReceived.WithLabelValues("STATUS")) == 40
	}, waitTimeout, 5*time.Millisecond)

	expectEvent(t, c, EventConnected)
	for i := 0; i < 40; i++ {
		assert.Equal(t, EventStatus, nextEvent(t, c).Kind)
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(m.eventsDropped))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.frameReceived("STATUS", 10)
		m.frameDropped("malformed")
		m.eventDropped()
		m.reconnectAttempt()
		m.setConnected(true)
	})
	assert.Nil(t, NewMetrics(nil))
}
