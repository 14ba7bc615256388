package pipeline

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
)

// Runner triggers a processing right away, then on every tick of interval.
// The payload is the trigger time. A processing that outlasts the interval
// delays the next tick.
type Runner struct {
	clock      clockwork.Clock
	interval   time.Duration
	processing Processing[time.Time]

	logger *logr.Logger
}

func NewRunner(interval time.Duration, processing Processing[time.Time]) Runner {
	return Runner{
		clock:      clockwork.NewRealClock(),
		interval:   interval,
		processing: processing,
	}
}

func (r Runner) WithLogger(logger logr.Logger) Runner {
	r.logger = &logger

	return r
}

func (r Runner) WithClock(clock clockwork.Clock) Runner {
	r.clock = clock

	return r
}

// Start blocks until ctx is done. Processing errors are logged, they never
// stop the runner.
func (r Runner) Start(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		err := r.processing.Process(ctx, r.clock.Now())
		if err != nil {
			r.logError(err, "Processing failed")
		}

		select {
		case <-ctx.Done():
			r.logInfo(0, "Context expired")

			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (r Runner) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r Runner) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}
