package testing

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/sensord/internal/wire"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend(filepath.Join(t.TempDir(), "s.sock"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_RecordsClientFrames(t *testing.T) {
	b := newBackend(t)

	conn, err := net.Dial("unix", b.Path())
	require.NoError(t, err)
	defer conn.Close()

	require.True(t, b.WaitForClients(1, time.Second))

	_, err = conn.Write(wire.EncodeFrame(wire.MsgControl, []byte{1, 2}))
	require.NoError(t, err)

	require.True(t, b.WaitForFrames(1, time.Second))
	frames := b.Received()
	require.Len(t, frames, 1)
	assert.Equal(t, wire.MsgControl, frames[0].Type)
	assert.Equal(t, []byte{1, 2}, frames[0].Payload)
}

func TestBackend_BroadcastAndDrop(t *testing.T) {
	b := newBackend(t)

	conn, err := net.Dial("unix", b.Path())
	require.NoError(t, err)
	defer conn.Close()
	require.True(t, b.WaitForClients(1, time.Second))

	require.NoError(t, b.Broadcast(wire.MsgStatus, wire.EncodeStatus("ok")))

	buf := make([]byte, wire.HeaderSize+2)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	h, err := wire.ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, wire.MsgStatus, h.Type)

	b.DropClients()
	assert.True(t, b.WaitForNoClients(time.Second))
	assert.Equal(t, 1, b.Accepted())
}

func TestSimulator_Next(t *testing.T) {
	s := NewSimulator(3, 42)
	first := s.Next()
	require.Len(t, first, 3)

	for i, r := range first {
		assert.Equal(t, uint8(BaseAddress+i), r.Address)
		assert.Equal(t, wire.SensorID(uint8(BaseAddress+i)), r.ID)
		assert.True(t, r.Active)
		assert.GreaterOrEqual(t, r.Temperature, float32(-10.2))
		assert.LessOrEqual(t, r.Temperature, float32(50.2))
		assert.GreaterOrEqual(t, r.Humidity, float32(-1))
		assert.LessOrEqual(t, r.Humidity, float32(101))
	}

	second := s.Next()
	assert.NotEqual(t, first[0].Temperature, second[0].Temperature)
}

func TestSimulator_ClampsCount(t *testing.T) {
	assert.Len(t, NewSimulator(0, 1).Next(), 1)
	assert.Len(t, NewSimulator(1000, 1).Next(), 256-BaseAddress)
}
