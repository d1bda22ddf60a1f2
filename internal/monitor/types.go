package monitor

import (
	"github.com/rileyhilliard/sensord/internal/pipeline"
)

// UpdateSource delivers pipeline notifications to the dashboard;
// *pipeline.ChannelConsumer satisfies it.
type UpdateSource interface {
	Updates() <-chan pipeline.Update
	Done() <-chan struct{}
}

// SensorController resets processor state on request. *stream.Processor
// satisfies it.
type SensorController interface {
	Clear(id string)
	ClearAll()
}

// updateMsg carries one pipeline notification into Update.
type updateMsg pipeline.Update

// sourceDoneMsg reports that the update source has been closed.
type sourceDoneMsg struct{}

// ViewMode defines the current display mode of the dashboard.
type ViewMode int

const (
	ViewGrid ViewMode = iota
	ViewDetail
)
