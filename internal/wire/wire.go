// Package wire encodes and decodes the sensor backend's binary protocol.
//
// Every frame is an 8-byte little-endian header (message type, payload size)
// followed by the payload. SENSOR_DATA and SENSOR_LIST payloads are a flat
// sequence of fixed 73-byte records:
//
//	[0]      address (uint8)
//	[1:32]   reserved, ignored
//	[32:36]  temperature (float32)
//	[36:40]  humidity (float32)
//	[40]     active flag (non-zero = true)
//	[41:73]  name, NUL-terminated
//
// STATUS payloads are UTF-8 text with optional trailing NUL bytes.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// MessageType identifies the payload carried by a frame.
type MessageType uint32

const (
	MsgSensorData MessageType = 1
	MsgSensorList MessageType = 2
	MsgControl    MessageType = 3
	MsgStatus     MessageType = 4
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case MsgSensorData:
		return "SENSOR_DATA"
	case MsgSensorList:
		return "SENSOR_LIST"
	case MsgControl:
		return "CONTROL"
	case MsgStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
	}
}

// Known reports whether the type is part of the protocol.
func (t MessageType) Known() bool {
	return t >= MsgSensorData && t <= MsgStatus
}

// Layout constants.
const (
	HeaderSize = 8
	RecordSize = 73
	NameSize   = 32

	offTemperature = 32
	offHumidity    = 36
	offActive      = 40
	offName        = 41
)

var (
	// ErrMalformedPayload is returned when a record payload is not a whole
	// number of records or a record cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMalformedStatus is returned for status text that is not valid UTF-8.
	ErrMalformedStatus = errors.New("malformed status text")

	// ErrShortHeader is returned when fewer than HeaderSize bytes are parsed.
	ErrShortHeader = errors.New("short frame header")

	// ErrPayloadTooLarge is returned when a header declares a payload larger
	// than the receiver accepts.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Header is the fixed frame prefix.
type Header struct {
	Type        MessageType
	PayloadSize uint32
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Type:        MessageType(binary.LittleEndian.Uint32(b[0:4])),
		PayloadSize: binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Type))
	return binary.LittleEndian.AppendUint32(dst, h.PayloadSize)
}

// EncodeFrame returns header and payload as one contiguous buffer.
func EncodeFrame(t MessageType, payload []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(payload))
	out = AppendHeader(out, Header{Type: t, PayloadSize: uint32(len(payload))})
	return append(out, payload...)
}

// Reading is one decoded sensor sample. It is a value type; a new reading
// never mutates an earlier one.
type Reading struct {
	ID          string
	Address     uint8
	Name        string
	Temperature float32
	Humidity    float32
	Active      bool
	Time        time.Time
}

// SensorID derives the stable identity key for a sensor address.
func SensorID(addr uint8) string {
	return fmt.Sprintf("sensor_%02x", addr)
}

// NewReading builds a Reading with its ID derived from addr.
func NewReading(addr uint8, name string, temperature, humidity float32, active bool, at time.Time) Reading {
	return Reading{
		ID:          SensorID(addr),
		Address:     addr,
		Name:        name,
		Temperature: temperature,
		Humidity:    humidity,
		Active:      active,
		Time:        at,
	}
}

// DecodeRecord decodes a single RecordSize-byte record.
func DecodeRecord(b []byte, at time.Time) (Reading, error) {
	if len(b) != RecordSize {
		return Reading{}, fmt.Errorf("%w: record is %d bytes, want %d", ErrMalformedPayload, len(b), RecordSize)
	}

	raw := b[offName : offName+NameSize]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if !utf8.Valid(raw) {
		return Reading{}, fmt.Errorf("%w: sensor 0x%02x name is not valid UTF-8", ErrMalformedPayload, b[0])
	}

	return NewReading(
		b[0],
		string(raw),
		math.Float32frombits(binary.LittleEndian.Uint32(b[offTemperature:offTemperature+4])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[offHumidity:offHumidity+4])),
		b[offActive] != 0,
		at,
	), nil
}

// AppendRecord appends the RecordSize-byte encoding of r to dst.
// Names longer than NameSize bytes are truncated at a rune boundary.
func AppendRecord(dst []byte, r Reading) []byte {
	var rec [RecordSize]byte
	rec[0] = r.Address
	binary.LittleEndian.PutUint32(rec[offTemperature:], math.Float32bits(r.Temperature))
	binary.LittleEndian.PutUint32(rec[offHumidity:], math.Float32bits(r.Humidity))
	if r.Active {
		rec[offActive] = 1
	}
	copy(rec[offName:offName+NameSize], truncateName(r.Name))
	return append(dst, rec[:]...)
}

// truncateName cuts name to NameSize bytes without splitting a rune.
func truncateName(name string) string {
	if len(name) <= NameSize {
		return name
	}
	cut := NameSize
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// DecodeSensorData decodes a SENSOR_DATA (or SENSOR_LIST) payload. The payload
// length must be an exact multiple of RecordSize; trailing partial records are
// an error, never silently dropped.
func DecodeSensorData(payload []byte, at time.Time) ([]Reading, error) {
	if len(payload)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedPayload, len(payload), RecordSize)
	}

	n := len(payload) / RecordSize
	readings := make([]Reading, 0, n)
	for i := 0; i < n; i++ {
		r, err := DecodeRecord(payload[i*RecordSize:(i+1)*RecordSize], at)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// EncodeSensorData encodes readings as a SENSOR_DATA payload.
func EncodeSensorData(readings []Reading) []byte {
	out := make([]byte, 0, len(readings)*RecordSize)
	for _, r := range readings {
		out = AppendRecord(out, r)
	}
	return out
}

// DecodeStatus decodes a STATUS payload, stripping trailing NUL bytes.
func DecodeStatus(payload []byte) (string, error) {
	text := bytes.TrimRight(payload, "\x00")
	if !utf8.Valid(text) {
		return "", ErrMalformedStatus
	}
	return string(text), nil
}

// EncodeStatus encodes a STATUS payload.
func EncodeStatus(status string) []byte {
	return []byte(status)
}

// Message is a decoded frame.
type Message struct {
	Type     MessageType
	Readings []Reading // SENSOR_DATA, SENSOR_LIST
	Status   string    // STATUS
	Payload  []byte    // CONTROL and unknown types, undecoded
}

// Decode decodes a frame payload according to its header type. Unknown and
// CONTROL types are returned opaque with their raw payload; they are not errors.
func Decode(t MessageType, payload []byte, at time.Time) (Message, error) {
	msg := Message{Type: t}
	switch t {
	case MsgSensorData, MsgSensorList:
		readings, err := DecodeSensorData(payload, at)
		if err != nil {
			return Message{}, err
		}
		msg.Readings = readings
	case MsgStatus:
		status, err := DecodeStatus(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Status = status
	default:
		msg.Payload = payload
	}
	return msg, nil
}
