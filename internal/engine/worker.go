package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/validation"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

type WorkerState int

const (
	StateStart WorkerState = iota
	StateFetchingAssessments
	StateFetchingStandards
	StateFetchingControls
	StateValidating
	StateDone
	StateFailed
)

func (s WorkerState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetchingAssessments:
		return "fetching_assessments"
	case StateFetchingStandards:
		return "fetching_standards"
	case StateFetchingControls:
		return "fetching_controls"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var fetchStates = map[entity.QueryKind]WorkerState{
	entity.QueryKindAssessments:         StateFetchingAssessments,
	entity.QueryKindRegulatoryStandards: StateFetchingStandards,
	entity.QueryKindControlDetails:      StateFetchingControls,
}

// WorkerOutcome is what one worker hands back to the coordinator.
type WorkerOutcome struct {
	Result  entity.SubscriptionResult
	Dropped int
	State   WorkerState
}

// Worker polls every query kind of one subscription. It is safe to share a
// Worker between goroutines.
type Worker struct {
	provider ProviderClient
	cache    QueryCache
	cacheTTL time.Duration
	policy   retry.Policy
	group    *singleflight.Group
	clock    clockwork.Clock
	metrics  *Metrics

	logger *logr.Logger
}

func NewWorker(provider ProviderClient, cache QueryCache, cacheTTL time.Duration, policy retry.Policy) Worker {
	if policy.Classifier == nil {
		policy.Classifier = ClassifyProviderError
	}

	return Worker{
		provider: provider,
		cache:    cache,
		cacheTTL: cacheTTL,
		policy:   policy,
		group:    &singleflight.Group{},
		clock:    clockwork.NewRealClock(),
	}
}

func (w Worker) WithLogger(logger logr.Logger) Worker {
	w.logger = &logger

	return w
}

func (w Worker) WithMetrics(metrics *Metrics) Worker {
	w.metrics = metrics

	return w
}

func (w Worker) WithClock(clock clockwork.Clock) Worker {
	w.clock = clock

	return w
}

// Run never fails: errors and panics become a Failure result.
func (w Worker) Run(ctx context.Context, credential Credential, id entity.SubscriptionID) (ret WorkerOutcome) {
	start := w.clock.Now()
	state := StateStart

	defer func() {
		r := recover()
		if r != nil {
			w.logError(fmt.Errorf("%v", r), "Worker panicked", "subscriptionId", id, "state", state)

			ret = WorkerOutcome{
				Result: entity.NewFailure(id, entity.ErrorKindPanic, fmt.Sprintf("unexpected error in state %s: %v", state, r)),
				State:  StateFailed,
			}
		}

		w.metrics.observeWorker(ret.Result, w.clock.Since(start), ret.Dropped)
	}()

	raw := make(map[entity.QueryKind][]entity.RawRecord, len(entity.QueryKinds))

	for _, kind := range entity.QueryKinds {
		state = fetchStates[kind]

		records, err := w.fetch(ctx, credential, entity.QueryKey{SubscriptionID: id, Kind: kind})
		if err != nil {
			errorKind := failureKind(ctx, err)

			w.logError(err, "Failed to poll subscription", "subscriptionId", id, "state", state, "kind", errorKind)

			return WorkerOutcome{
				Result: entity.NewFailure(id, errorKind, fmt.Sprintf("%s: %v", state, err)),
				State:  StateFailed,
			}
		}

		raw[kind] = records
	}

	state = StateValidating

	valid, dropped := w.validate(id, raw)

	state = StateDone

	w.logInfo(1, "Subscription polled", "subscriptionId", id, "records", len(valid), "dropped", dropped)

	return WorkerOutcome{
		Result:  entity.NewSuccess(id, valid),
		Dropped: dropped,
		State:   state,
	}
}

// fetch reads key from the cache, or calls the provider once for all
// concurrent callers of the same key and caches a successful result.
func (w Worker) fetch(ctx context.Context, credential Credential, key entity.QueryKey) ([]entity.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, found := w.cache.Get(ctx, key)
	w.metrics.cacheLookup(found)

	if found {
		return records, nil
	}

	value, err, _ := w.group.Do(key.String(), func() (any, error) {
		// A previous flight may have filled the cache after our lookup.
		cached, found := w.cache.Get(ctx, key)
		if found {
			return cached, nil
		}

		policy := w.policy
		policy.OnRetry = func(attempt uint, delay time.Duration, err error) {
			w.metrics.retry(err)
			w.logInfo(1, "Retrying provider call", "key", key.String(), "attempt", attempt, "delay", delay, "error", err.Error())
		}

		ret, err := retry.Call(ctx, policy, func(ctx context.Context) ([]entity.RawRecord, error) {
			return w.provider.Fetch(ctx, credential, key.SubscriptionID, key.Kind)
		})
		if err != nil {
			return nil, err
		}

		w.cache.Put(ctx, key, ret, w.cacheTTL)

		return ret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key.Kind, err)
	}

	ret, ok := value.([]entity.RawRecord)
	if !ok {
		return nil, errors.New("unexpected cached value type")
	}

	return ret, nil
}

// validate keeps the query order of entity.QueryKinds and tags every record
// with the kind of query it came from.
func (w Worker) validate(id entity.SubscriptionID, raw map[entity.QueryKind][]entity.RawRecord) ([]entity.ComplianceRecord, int) {
	ret := make([]entity.ComplianceRecord, 0)
	dropped := 0

	for _, kind := range entity.QueryKinds {
		for _, r := range raw[kind] {
			record, err := validation.Validate(r)
			if err != nil {
				dropped++

				w.logInfo(2, "Dropping invalid record", "subscriptionId", id, "kind", kind, "reason", err.Error())

				continue
			}

			record.Kind = kind
			ret = append(ret, record)
		}
	}

	if dropped > 0 {
		w.logInfo(0, "Invalid records dropped", "subscriptionId", id, "dropped", dropped)
	}

	return ret, dropped
}

func (w Worker) logInfo(level int, msg string, keysAndValues ...any) {
	if w.logger == nil {
		return
	}

	w.logger.V(level).Info(msg, keysAndValues...)
}

func (w Worker) logError(err error, msg string, keysAndValues ...any) {
	if w.logger == nil {
		return
	}

	w.logger.Error(err, msg, keysAndValues...)
}
