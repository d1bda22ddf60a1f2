package testing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rileyhilliard/sensord/internal/wire"
)

// BaseAddress is the address of the first simulated sensor.
const BaseAddress = 0x40

// Simulator produces random-walk readings for a fixed set of sensors.
type Simulator struct {
	sensors []wire.Reading
	rnd     *rand.Rand
	now     func() time.Time
}

// NewSimulator creates count sensors at consecutive addresses starting at
// BaseAddress. The seed makes runs reproducible.
func NewSimulator(count int, seed int64) *Simulator {
	if count < 1 {
		count = 1
	}
	if count > 256-BaseAddress {
		count = 256 - BaseAddress
	}

	s := &Simulator{
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
	for i := 0; i < count; i++ {
		addr := uint8(BaseAddress + i)
		s.sensors = append(s.sensors, wire.NewReading(
			addr,
			fmt.Sprintf("Sensor_%02X", addr),
			20+float32(s.rnd.Intn(100))/10,
			40+float32(s.rnd.Intn(400))/10,
			true,
			time.Time{},
		))
	}
	return s
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rnd.Float64()*(hi-lo)
}

// Next advances every sensor one step and returns the new readings.
func (s *Simulator) Next() []wire.Reading {
	now := s.now()
	phase := float64(now.Unix())
	out := make([]wire.Reading, len(s.sensors))

	for i := range s.sensors {
		r := &s.sensors[i]
		temp := float64(r.Temperature) + s.uniform(-0.5, 0.5)
		hum := float64(r.Humidity) + s.uniform(-1, 1)

		temp = math.Max(-10, math.Min(50, temp))
		hum = math.Max(0, math.Min(100, hum))

		temp += math.Sin(phase/10) * 0.1
		hum += math.Cos(phase/15) * 0.5

		r.Temperature = float32(temp)
		r.Humidity = float32(hum)
		r.Time = now
		out[i] = *r
	}
	return out
}

// Run broadcasts a SENSOR_DATA frame to b every interval until ctx ends.
func (s *Simulator) Run(ctx context.Context, b *Backend, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if b.Clients() == 0 {
				continue
			}
			if err := b.BroadcastReadings(s.Next()); err != nil {
				b.log.Debug("broadcast failed: %v", err)
			}
		}
	}
}
