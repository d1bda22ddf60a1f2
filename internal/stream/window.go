package stream

import "time"

// ringBuffer is a fixed-size circular buffer. Storage grows with the first
// size pushes, so a large window costs nothing until samples arrive.
type ringBuffer[T any] struct {
	data  []T
	head  int
	count int
	size  int
}

func newRingBuffer[T any](size int) *ringBuffer[T] {
	return &ringBuffer[T]{size: size}
}

// push adds a value, overwriting the oldest once the buffer is full.
func (r *ringBuffer[T]) push(value T) {
	if len(r.data) < r.size {
		r.data = append(r.data, value)
	} else {
		r.data[r.head] = value
	}
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer[T]) getLast(count int) []T {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]T, count)
	// head is the next write position, so the newest value sits at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}

// History is a snapshot of one sensor's window, oldest sample first. The
// three slices always have equal length.
type History struct {
	Timestamps   []time.Time
	Temperatures []float64
	Humidities   []float64
}

// Len returns the number of samples.
func (h History) Len() int { return len(h.Timestamps) }

// Last returns the newest n samples as a new History.
func (h History) Last(n int) History {
	if n >= h.Len() || n < 0 {
		return h
	}
	start := h.Len() - n
	return History{
		Timestamps:   h.Timestamps[start:],
		Temperatures: h.Temperatures[start:],
		Humidities:   h.Humidities[start:],
	}
}

// window holds the three parallel buffers for one sensor. They are only
// ever pushed together, which keeps their lengths equal.
type window struct {
	timestamps   *ringBuffer[time.Time]
	temperatures *ringBuffer[float64]
	humidities   *ringBuffer[float64]
}

func newWindow(size int) *window {
	return &window{
		timestamps:   newRingBuffer[time.Time](size),
		temperatures: newRingBuffer[float64](size),
		humidities:   newRingBuffer[float64](size),
	}
}

func (w *window) push(at time.Time, temperature, humidity float64) {
	w.timestamps.push(at)
	w.temperatures.push(temperature)
	w.humidities.push(humidity)
}

func (w *window) len() int { return w.timestamps.count }

func (w *window) last(n int) History {
	return History{
		Timestamps:   w.timestamps.getLast(n),
		Temperatures: w.temperatures.getLast(n),
		Humidities:   w.humidities.getLast(n),
	}
}

func (w *window) snapshot() History { return w.last(w.len()) }
