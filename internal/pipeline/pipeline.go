// Package pipeline delivers transport events through the stream processor to
// consumers. It is the single goroutine that writes processor state.
package pipeline

import (
	"context"

	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/transport"
)

// Consumer receives processed batches and connectivity changes. Methods are
// called from the pipeline goroutine, one at a time.
type Consumer interface {
	OnBatch(views map[string]stream.View)
	OnConnection(connected bool)
}

// StatusConsumer is optionally implemented by consumers that want backend
// status text.
type StatusConsumer interface {
	OnStatus(status string)
}

// AnomalyConsumer is optionally implemented by consumers that want anomaly
// notifications.
type AnomalyConsumer interface {
	OnAnomalies(anomalies []stream.Anomaly)
}

// ConsumerFuncs adapts plain functions to every consumer interface. Nil
// fields are skipped.
type ConsumerFuncs struct {
	Batch      func(views map[string]stream.View)
	Connection func(connected bool)
	Status     func(status string)
	Anomalies  func(anomalies []stream.Anomaly)
}

func (f ConsumerFuncs) OnBatch(views map[string]stream.View) {
	if f.Batch != nil {
		f.Batch(views)
	}
}

func (f ConsumerFuncs) OnConnection(connected bool) {
	if f.Connection != nil {
		f.Connection(connected)
	}
}

func (f ConsumerFuncs) OnStatus(status string) {
	if f.Status != nil {
		f.Status(status)
	}
}

func (f ConsumerFuncs) OnAnomalies(anomalies []stream.Anomaly) {
	if f.Anomalies != nil {
		f.Anomalies(anomalies)
	}
}

// Source is anything that produces transport events; *transport.Client
// satisfies it.
type Source interface {
	Events() <-chan transport.Event
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConsumer adds a consumer. Consumers are notified in the order added.
func WithConsumer(c Consumer) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.consumers = append(p.consumers, c)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline moves events from a Source through a Processor to consumers.
type Pipeline struct {
	source    Source
	processor *stream.Processor
	consumers []Consumer
	log       logger.Logger
}

// New creates a pipeline.
func New(source Source, processor *stream.Processor, opts ...Option) *Pipeline {
	p := &Pipeline{source: source, processor: processor}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NewEnvLogger("[pipeline]")
	}
	return p
}

// Processor returns the processor the pipeline writes to.
func (p *Pipeline) Processor() *stream.Processor { return p.processor }

// Run handles events until the source's channel closes or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	events := p.source.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ev)
		}
	}
}

// Handle processes a single event synchronously.
func (p *Pipeline) Handle(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		p.notifyConnection(true)
	case transport.EventDisconnected:
		if ev.Err != nil {
			p.log.Debug("session %s ended: %v", ev.Session, ev.Err)
		}
		p.notifyConnection(false)
	case transport.EventReadings:
		if len(ev.Readings) == 0 {
			return
		}
		// Judge new values against history that does not contain them yet.
		anomalies := p.processor.DetectAnomalies(ev.Readings)
		views := p.processor.Ingest(ev.Readings)
		for _, c := range p.consumers {
			c.OnBatch(views)
		}
		if len(anomalies) > 0 {
			for _, a := range anomalies {
				p.log.Warn("anomaly on %s (%s): %s=%.2f mean=%.2f severity=%s",
					a.SensorID, a.SensorName, a.Metric, a.Value, a.Mean, a.Severity)
			}
			for _, c := range p.consumers {
				if ac, ok := c.(AnomalyConsumer); ok {
					ac.OnAnomalies(anomalies)
				}
			}
		}
	case transport.EventStatus:
		for _, c := range p.consumers {
			if sc, ok := c.(StatusConsumer); ok {
				sc.OnStatus(ev.Status)
			}
		}
	}
}

func (p *Pipeline) notifyConnection(up bool) {
	for _, c := range p.consumers {
		c.OnConnection(up)
	}
}
