package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/sensord/internal/config"
	"github.com/rileyhilliard/sensord/internal/errors"
	"github.com/rileyhilliard/sensord/internal/logger"
	"github.com/rileyhilliard/sensord/internal/pipeline"
	"github.com/rileyhilliard/sensord/internal/stream"
	"github.com/rileyhilliard/sensord/internal/transport"
)

// collectOptions bounds a one-shot collection run.
type collectOptions struct {
	// Sensor restricts sample counting to one sensor id. When empty every
	// sensor reading in a frame counts.
	Sensor string
	// Samples stops collection once this many samples arrived; 0 means no
	// limit. The running count never exceeds it.
	Samples int
	// Duration stops collection after this long; 0 means no limit.
	Duration time.Duration
	// Progress is called with the running sample count.
	Progress func(n int)
}

// collect connects once, feeds the stream processor until a limit is hit or
// ctx ends, and returns the processor with whatever was gathered. Losing the
// connection ends collection early.
func collect(ctx context.Context, cfg *config.Config, log logger.Logger, opts collectOptions) (*stream.Processor, int, error) {
	if opts.Samples <= 0 && opts.Duration <= 0 {
		return nil, 0, errors.New(errors.ErrConfig,
			"Collection needs a limit",
			"Pass --samples, --duration, or both.")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Duration)
		defer stop()
	}

	client := transport.New(cfg.Socket.Path, clientOptions(cfg, log, nil)...)
	proc := stream.New(processorOptions(cfg, log, nil)...)

	var (
		mu       sync.Mutex
		count    int
		lost     bool
		stopping bool
	)
	counter := pipeline.ConsumerFuncs{
		Batch: func(views map[string]stream.View) {
			added := len(views)
			if opts.Sensor != "" {
				if _, ok := views[opts.Sensor]; !ok {
					return
				}
				added = 1
			}
			mu.Lock()
			if opts.Samples > 0 && count >= opts.Samples {
				// Draining after the limit was hit.
				mu.Unlock()
				return
			}
			count += added
			if opts.Samples > 0 && count > opts.Samples {
				count = opts.Samples
			}
			n := count
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(n)
			}
			if opts.Samples > 0 && n >= opts.Samples {
				cancel()
			}
		},
		Connection: func(up bool) {
			if up {
				return
			}
			mu.Lock()
			if !stopping {
				lost = true
			}
			mu.Unlock()
			cancel()
		},
	}
	p := pipeline.New(client, proc, pipeline.WithConsumer(counter), pipeline.WithLogger(log))

	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, 0, err
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-ctx.Done()
	mu.Lock()
	stopping = true
	mu.Unlock()
	// Closing the client drains pending events through the pipeline and then
	// closes its source channel.
	_ = client.Close()
	if err := <-done; err != nil {
		return nil, 0, err
	}

	mu.Lock()
	defer mu.Unlock()
	if count == 0 && lost {
		return nil, 0, errors.New(errors.ErrConnection,
			fmt.Sprintf("Connection to %s closed before any samples arrived", cfg.Socket.Path),
			"Check the backend is sending SENSOR_DATA frames")
	}
	return proc, count, nil
}
