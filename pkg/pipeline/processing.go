package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

// Parallel Processing

type parallel[Payload any] struct {
	procs []Processing[Payload]
}

// NewParallelProcessing sends the payload to every processing concurrently.
// A failing processing does not stop the others: all errors are joined.
func NewParallelProcessing[Payload any](p ...Processing[Payload]) Processing[Payload] {
	return parallel[Payload]{
		procs: p,
	}
}

func (p parallel[Payload]) Process(ctx context.Context, payload Payload) error {
	errs := make([]error, len(p.procs))

	var wg sync.WaitGroup

	for i, proc := range p.procs {
		wg.Add(1)

		go func(i int, processing Processing[Payload]) {
			defer wg.Done()

			errs[i] = processing.Process(ctx, payload)
		}(i, proc)
	}

	wg.Wait()

	return errors.Join(errs...)
}

// Panic handler Processing

type panicHandler[Payload any] struct {
	processing Processing[Payload]
}

func NewPanicHandlerProcessing[Payload any](p Processing[Payload]) Processing[Payload] {
	return panicHandler[Payload]{
		processing: p,
	}
}

func (p panicHandler[Payload]) Process(ctx context.Context, payload Payload) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = NewErrProcessingError(
				fmt.Errorf("unexpected error: %v", r),
				PanicCategory,
				"",
			)
		}
	}()

	err = p.processing.Process(ctx, payload)

	return
}

// Retry Processing

type retryProcessing[Payload any] struct {
	processing Processing[Payload]
	policy     retry.Policy
}

type RetryConfig struct {
	MaxAttempt uint
	Delay      time.Duration
	MaxDelay   time.Duration

	// Optional, used in tests
	Timer retry.Timer
}

// NewRetryProcessing retries the inner processing as long as it returns an
// error wrapping ErrRetryableError.
func NewRetryProcessing[Payload any](p Processing[Payload], config RetryConfig) Processing[Payload] {
	return retryProcessing[Payload]{
		processing: p,
		policy: retry.Policy{
			MaxAttempts: config.MaxAttempt,
			BaseDelay:   config.Delay,
			MaxDelay:    config.MaxDelay,
			Timer:       config.Timer,
			Classifier: func(err error) retry.Class {
				if errors.Is(err, ErrRetryableError) {
					return retry.Transient
				}

				return retry.Permanent
			},
		},
	}
}

func (p retryProcessing[Payload]) Process(ctx context.Context, payload Payload) error {
	_, err := retry.Call(ctx, p.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.processing.Process(ctx, payload)
	})

	return err
}

// Fallback Processing

type FallbackProcessing[Payload any] struct {
	processing      Processing[Payload]
	errorProcessing ErrorProcessing

	logger *logr.Logger
}

// NewFallbackProcessing hands every error of the inner processing to
// errorProcessing. The original error is still returned.
func NewFallbackProcessing[Payload any](p Processing[Payload], errorProcessing ErrorProcessing) FallbackProcessing[Payload] {
	return FallbackProcessing[Payload]{
		processing:      p,
		errorProcessing: errorProcessing,
	}
}

func (p FallbackProcessing[Payload]) WithLogger(logger logr.Logger) FallbackProcessing[Payload] {
	p.logger = &logger

	return p
}

func (p FallbackProcessing[Payload]) Process(ctx context.Context, payload Payload) error {
	err := p.processing.Process(ctx, payload)
	if err == nil {
		return nil
	}

	processingError := AsErrProcessingError(err)

	p.logError(processingError, "Processing failed", "category", processingError.Category, "target", processingError.Target)

	// The run context may be gone already: error processing gets its own.
	errCtx := context.WithoutCancel(ctx)

	errProcessingErr := p.errorProcessing.Process(errCtx, processingError)
	if errProcessingErr != nil {
		p.logError(errProcessingErr, "Failed to process error")
	}

	return err
}

func (p FallbackProcessing[Payload]) logError(err error, msg string, keysAndValues ...any) {
	if p.logger == nil {
		return
	}

	p.logger.Error(err, msg, keysAndValues...)
}

// Duration Metric Processing

type MetricsConfig struct {
	Namespace string
	Subsystem string
	Buckets   []float64
}

type durationDecorator[Payload any] struct {
	processing Processing[Payload]
	histogram  *prometheus.HistogramVec
	clock      clockwork.Clock
}

func NewDurationMetricsDecoratorProcessing[Payload any](p Processing[Payload], registry prometheus.Registerer, clock clockwork.Clock, config MetricsConfig) (Processing[Payload], error) {
	ret := durationDecorator[Payload]{
		processing: p,
		clock:      clock,
	}

	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000}
	}

	opts := prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "processing_duration_milliseconds",
		Help:      "Time taken to process payload.",
		Buckets:   buckets,
	}

	histogram := prometheus.NewHistogramVec(opts, []string{"failed"})

	err := registry.Register(histogram)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret.histogram = histogram

	return ret, nil
}

func (p durationDecorator[Payload]) Process(ctx context.Context, payload Payload) error {
	start := p.clock.Now()

	err := p.processing.Process(ctx, payload)

	duration := p.clock.Since(start)

	p.histogram.WithLabelValues(fmt.Sprintf("%v", err != nil)).Observe(Milliseconds(duration))

	return err
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d/time.Millisecond) + float64(d%time.Millisecond)/float64(time.Millisecond)
}

// Error Metric Processing

type errorCountProcessing struct {
	counter *prometheus.CounterVec
}

func NewErrorCountProcessing(registry prometheus.Registerer, config MetricsConfig) (Processing[ErrProcessingError], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "processing_error_total",
		Help:      "Error counter by category.",
	}, []string{"category"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret := errorCountProcessing{
		counter: counter,
	}

	return ret, nil
}

func (p errorCountProcessing) Process(ctx context.Context, processingError ErrProcessingError) error {
	category := processingError.Category
	if category == "" {
		category = emptyCategoryName
	}

	p.counter.WithLabelValues(category).Inc()

	return nil
}
