package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_GrowsOnDemand(t *testing.T) {
	r := newRingBuffer[int](1_000_000)
	assert.Zero(t, cap(r.data), "no storage before the first push")

	for i := 1; i <= 3; i++ {
		r.push(i)
	}
	assert.Less(t, cap(r.data), 1000)
	assert.Equal(t, []int{1, 2, 3}, r.getLast(10))
	assert.Equal(t, []int{2, 3}, r.getLast(2))
}

func TestRingBuffer_Wraps(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		pushes int
		last   int
		want   []int
	}{
		{"partial", 4, 2, 4, []int{1, 2}},
		{"exactly full", 4, 4, 4, []int{1, 2, 3, 4}},
		{"one over", 4, 5, 4, []int{2, 3, 4, 5}},
		{"many laps", 3, 10, 3, []int{8, 9, 10}},
		{"tail after wrap", 3, 7, 2, []int{6, 7}},
		{"size one", 1, 5, 3, []int{5}},
		{"empty", 3, 0, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRingBuffer[int](tt.size)
			for i := 1; i <= tt.pushes; i++ {
				r.push(i)
			}
			assert.Equal(t, tt.want, r.getLast(tt.last))
			assert.LessOrEqual(t, len(r.data), tt.size)
		})
	}
}
