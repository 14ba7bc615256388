package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Class tells Call whether an error deserves another attempt.
type Class int

const (
	Permanent Class = iota
	Transient
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

type Classifier func(error) Class

// Timer is the clock used to wait between attempts.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classifier  Classifier

	// Optional
	Timer Timer
	// OnRetry is called after a failed attempt, before waiting delay.
	OnRetry func(attempt uint, delay time.Duration, err error)
}

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// DefaultPolicy retries every error. Callers are expected to set a Classifier.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Classifier:  func(error) Class { return Transient },
	}
}

// Call runs op until it succeeds, returns a permanent error, the attempt
// budget is spent or ctx is done.
//
// The wait before attempt n+1 is BaseDelay*2^n plus a jitter in [0, BaseDelay),
// capped at MaxDelay. When the budget is spent on transient errors, the last
// error is returned wrapped with ErrRetriesExhausted.
func Call[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var (
		attempts  uint
		lastClass = Permanent
	)

	delay := func(n uint, err error, config *retrygo.Config) time.Duration {
		ret := policy.delay(attempts - 1)

		if policy.OnRetry != nil {
			policy.OnRetry(attempts, ret, err)
		}

		return ret
	}

	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(policy.MaxAttempts),
		retrygo.DelayType(delay),
		retrygo.MaxDelay(policy.MaxDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(func(err error) bool {
			return lastClass == Transient
		}),
	}

	if policy.Timer != nil {
		opts = append(opts, retrygo.WithTimer(policy.Timer))
	}

	ret, err := retrygo.DoWithData(
		func() (T, error) {
			attempts++

			res, err := op(ctx)
			if err != nil {
				lastClass = policy.Classifier(err)
			}

			return res, err
		},
		opts...,
	)
	if err == nil {
		return ret, nil
	}

	var zero T

	// Context expiry: retry-go only reports ctx.Err().
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return zero, err
	}

	if lastClass == Transient && attempts >= policy.MaxAttempts {
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}

	return zero, err
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}

	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}

	if p.Classifier == nil {
		p.Classifier = func(error) Class { return Transient }
	}

	return p
}

// delay returns the wait after the n-th failed attempt (n starts at 0).
func (p Policy) delay(n uint) time.Duration {
	if p.BaseDelay == 0 {
		return 0
	}

	// avoid overflowing the shift
	const maxShift = 62
	if n > maxShift {
		n = maxShift
	}

	backoff := p.BaseDelay << n
	if backoff <= 0 || backoff > p.MaxDelay {
		return p.MaxDelay
	}

	ret := backoff + time.Duration(rand.Int63n(int64(p.BaseDelay)))
	if ret > p.MaxDelay {
		return p.MaxDelay
	}

	return ret
}
