package wire

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestSensorID(t *testing.T) {
	tests := []struct {
		addr uint8
		want string
	}{
		{0x00, "sensor_00"},
		{0x40, "sensor_40"},
		{0x4a, "sensor_4a"},
		{0xff, "sensor_ff"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SensorID(tt.addr))
		})
	}
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "SENSOR_DATA", MsgSensorData.String())
	assert.Equal(t, "STATUS", MsgStatus.String())
	assert.Equal(t, "UNKNOWN(9)", MessageType(9).String())
	assert.True(t, MsgControl.Known())
	assert.False(t, MessageType(0).Known())
	assert.False(t, MessageType(5).Known())
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: MsgStatus, PayloadSize: 1234}
	b := AppendHeader(nil, h)
	require.Len(t, b, HeaderSize)

	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, uint32(1234), binary.LittleEndian.Uint32(b[4:8]))

	got, err := ParseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestParseHeader_Short(t *testing.T) {
	_, err := ParseHeader([]byte{1, 0, 0})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
	}{
		{
			name:    "typical sensor",
			reading: NewReading(0x40, "Living Room", 22.5, 55.25, true, testTime),
		},
		{
			name:    "inactive with empty name",
			reading: NewReading(0x01, "", -12.75, 0, false, testTime),
		},
		{
			name:    "name fills the whole field",
			reading: NewReading(0x7f, strings.Repeat("x", NameSize), 100.125, 99.5, true, testTime),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := AppendRecord(nil, tt.reading)
			require.Len(t, b, RecordSize)

			got, err := DecodeRecord(b, testTime)
			require.NoError(t, err)
			assert.Equal(t, tt.reading, got)
		})
	}
}

func TestRecordLayout(t *testing.T) {
	b := AppendRecord(nil, NewReading(0x42, "probe", 21.0, 40.0, true, testTime))

	assert.Equal(t, byte(0x42), b[0])
	assert.Equal(t, float32(21.0), math.Float32frombits(binary.LittleEndian.Uint32(b[32:36])))
	assert.Equal(t, float32(40.0), math.Float32frombits(binary.LittleEndian.Uint32(b[36:40])))
	assert.Equal(t, byte(1), b[40])
	assert.Equal(t, "probe", string(b[41:46]))
	assert.Equal(t, byte(0), b[46])
}

func TestDecodeRecord_IgnoresPaddingAndTrailingNameBytes(t *testing.T) {
	b := AppendRecord(nil, NewReading(0x10, "abc", 1, 2, false, testTime))
	for i := 1; i < 32; i++ {
		b[i] = 0xAA
	}
	// Garbage after the terminator must be discarded.
	copy(b[45:], "zzzz")
	// Any non-zero active byte means true.
	b[40] = 7

	got, err := DecodeRecord(b, testTime)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Name)
	assert.True(t, got.Active)
	assert.Equal(t, uint8(0x10), got.Address)
}

func TestAppendRecord_TruncatesLongNamesOnRuneBoundary(t *testing.T) {
	name := strings.Repeat("a", NameSize-1) + "é"
	b := AppendRecord(nil, NewReading(1, name, 0, 0, true, testTime))

	got, err := DecodeRecord(b, testTime)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", NameSize-1), got.Name)
}

func TestDecodeRecord_InvalidUTF8Name(t *testing.T) {
	b := AppendRecord(nil, NewReading(1, "ok", 0, 0, true, testTime))
	b[41] = 0xff

	_, err := DecodeRecord(b, testTime)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeSensorData(t *testing.T) {
	readings := []Reading{
		NewReading(0x40, "one", 20, 50, true, testTime),
		NewReading(0x41, "two", 21, 51, true, testTime),
		NewReading(0x42, "three", 22, 52, false, testTime),
	}
	payload := EncodeSensorData(readings)
	require.Len(t, payload, 3*RecordSize)

	got, err := DecodeSensorData(payload, testTime)
	require.NoError(t, err)
	assert.Equal(t, readings, got)
}

func TestDecodeSensorData_Empty(t *testing.T) {
	got, err := DecodeSensorData(nil, testTime)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeSensorData_RejectsPartialRecords(t *testing.T) {
	for _, size := range []int{1, 72, 74, 2*RecordSize - 1} {
		payload := make([]byte, size)
		_, err := DecodeSensorData(payload, testTime)
		assert.ErrorIs(t, err, ErrMalformedPayload, "size %d", size)
	}
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
		wantErr bool
	}{
		{name: "plain", payload: []byte("backend ready"), want: "backend ready"},
		{name: "trailing NULs stripped", payload: append([]byte("ok"), 0, 0, 0), want: "ok"},
		{name: "empty", payload: nil, want: ""},
		{name: "invalid utf8", payload: []byte{0xc3, 0x28}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStatus(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("sensor data", func(t *testing.T) {
		payload := EncodeSensorData([]Reading{NewReading(0x40, "a", 1, 2, true, testTime)})
		msg, err := Decode(MsgSensorData, payload, testTime)
		require.NoError(t, err)
		require.Len(t, msg.Readings, 1)
		assert.Equal(t, "sensor_40", msg.Readings[0].ID)
	})

	t.Run("sensor list uses the record layout", func(t *testing.T) {
		payload := EncodeSensorData([]Reading{NewReading(0x41, "b", 1, 2, true, testTime)})
		msg, err := Decode(MsgSensorList, payload, testTime)
		require.NoError(t, err)
		require.Len(t, msg.Readings, 1)
	})

	t.Run("status", func(t *testing.T) {
		msg, err := Decode(MsgStatus, EncodeStatus("running"), testTime)
		require.NoError(t, err)
		assert.Equal(t, "running", msg.Status)
	})

	t.Run("unknown type is opaque", func(t *testing.T) {
		msg, err := Decode(MessageType(42), []byte{1, 2, 3}, testTime)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, msg.Payload)
		assert.False(t, msg.Type.Known())
	})

	t.Run("malformed sensor data", func(t *testing.T) {
		_, err := Decode(MsgSensorData, make([]byte, 10), testTime)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestEncodeFrame(t *testing.T) {
	payload := EncodeStatus("hi")
	frame := EncodeFrame(MsgStatus, payload)
	require.Len(t, frame, HeaderSize+2)

	h, err := ParseHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgStatus, h.Type)
	assert.Equal(t, uint32(2), h.PayloadSize)
	assert.Equal(t, "hi", string(frame[HeaderSize:]))
}
