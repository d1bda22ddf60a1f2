package pipeline

import (
	"sync"

	"github.com/rileyhilliard/sensord/internal/stream"
)

// UpdateKind identifies the payload of an Update.
type UpdateKind int

const (
	UpdateBatch UpdateKind = iota
	UpdateConnection
	UpdateStatus
	UpdateAnomalies
)

// Update is one consumer notification in value form.
type Update struct {
	Kind      UpdateKind
	Views     map[string]stream.View
	Connected bool
	Status    string
	Anomalies []stream.Anomaly
}

// ChannelConsumer forwards notifications onto a channel for consumers that
// run their own event loop. Sends block until read or until Close.
type ChannelConsumer struct {
	ch        chan Update
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelConsumer creates a consumer with the given channel buffer.
func NewChannelConsumer(buffer int) *ChannelConsumer {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelConsumer{
		ch:   make(chan Update, buffer),
		done: make(chan struct{}),
	}
}

// Updates returns the notification channel. It is never closed; select on
// Done as well when waiting.
func (c *ChannelConsumer) Updates() <-chan Update { return c.ch }

// Done is closed by Close.
func (c *ChannelConsumer) Done() <-chan struct{} { return c.done }

// Close unblocks pending and future sends, which are then discarded.
func (c *ChannelConsumer) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *ChannelConsumer) send(u Update) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.ch <- u:
	case <-c.done:
	}
}

func (c *ChannelConsumer) OnBatch(views map[string]stream.View) {
	c.send(Update{Kind: UpdateBatch, Views: views})
}

func (c *ChannelConsumer) OnConnection(connected bool) {
	c.send(Update{Kind: UpdateConnection, Connected: connected})
}

func (c *ChannelConsumer) OnStatus(status string) {
	c.send(Update{Kind: UpdateStatus, Status: status})
}

func (c *ChannelConsumer) OnAnomalies(anomalies []stream.Anomaly) {
	c.send(Update{Kind: UpdateAnomalies, Anomalies: anomalies})
}
