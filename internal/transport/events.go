package transport

import (
	"sync"
	"time"

	"github.com/rileyhilliard/sensord/internal/wire"
)

// EventKind distinguishes the notifications a Client delivers.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventReadings
	EventStatus
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReadings:
		return "readings"
	case EventStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Event is a single notification from the receive side of a Client.
type Event struct {
	Kind    EventKind
	Session string // identifies the connection the event belongs to
	Time    time.Time

	Type     wire.MessageType // EventReadings, EventStatus
	Readings []wire.Reading   // EventReadings
	Status   string           // EventStatus
	Err      error            // EventDisconnected; nil for an orderly close
}

// DefaultEventBuffer is how many undelivered data events a Client holds
// before it starts dropping new ones.
const DefaultEventBuffer = 256

// eventQueue decouples the receive loop from the consumer. push never
// blocks; a dispatcher goroutine feeds out at the consumer's pace.
// Connectivity events are always queued, data events are dropped once
// limit are pending.
type eventQueue struct {
	out   chan Event
	limit int

	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newEventQueue(limit int) *eventQueue {
	if limit <= 0 {
		limit = DefaultEventBuffer
	}
	q := &eventQueue{out: make(chan Event), limit: limit}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// push queues ev and reports whether it was accepted.
func (q *eventQueue) push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	droppable := ev.Kind == EventReadings || ev.Kind == EventStatus
	if droppable && len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
	return true
}

// close stops accepting events. Pending events are still delivered, then out
// is closed.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *eventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.out <- ev
	}
}
