package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/labeling"
	"github.com/schubergphilis/azureenergylabelerlib/internal/validation"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

const DefaultMaxConcurrency = 8

type Config struct {
	TenantID       string
	MaxConcurrency int
	CacheTTL       time.Duration
	RunTimeout     time.Duration
	Retry          retry.Policy

	// Mutually exclusive, validated with validation.ValidateAllowDeny.
	AllowedSubscriptions []entity.SubscriptionID
	DeniedSubscriptions  []entity.SubscriptionID
}

// Coordinator runs one polling cycle: credential, discovery, fan-out to one
// Worker per subscription and merge into a Report.
type Coordinator struct {
	credentials CredentialProvider
	discovery   SubscriptionDiscovery
	worker      Worker
	config      Config
	labeler     *labeling.Labeler
	clock       clockwork.Clock
	metrics     *Metrics
	newRunID    func() string

	logger *logr.Logger
}

func NewCoordinator(credentials CredentialProvider, discovery SubscriptionDiscovery, provider ProviderClient, cache QueryCache, config Config) Coordinator {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}

	if config.Retry.Classifier == nil {
		config.Retry.Classifier = ClassifyProviderError
	}

	return Coordinator{
		credentials: credentials,
		discovery:   discovery,
		worker:      NewWorker(provider, cache, config.CacheTTL, config.Retry),
		config:      config,
		clock:       clockwork.NewRealClock(),
		newRunID:    uuid.NewString,
	}
}

func (c Coordinator) WithLogger(logger logr.Logger) Coordinator {
	c.logger = &logger
	c.worker = c.worker.WithLogger(logger)

	return c
}

func (c Coordinator) WithMetrics(metrics *Metrics) Coordinator {
	c.metrics = metrics
	c.worker = c.worker.WithMetrics(metrics)

	return c
}

func (c Coordinator) WithClock(clock clockwork.Clock) Coordinator {
	c.clock = clock
	c.worker = c.worker.WithClock(clock)

	return c
}

func (c Coordinator) WithLabeler(labeler labeling.Labeler) Coordinator {
	c.labeler = &labeler

	return c
}

// WithCache swaps the query cache, keeping everything else. Used to start a
// cycle with an empty cache.
func (c Coordinator) WithCache(cache QueryCache) Coordinator {
	c.worker.cache = cache

	return c
}

// Execute runs a full cycle. It only returns an error, a *RunError, when the
// run cannot start: subscription failures are part of the Report.
func (c Coordinator) Execute(ctx context.Context) (entity.Report, error) {
	startedAt := c.clock.Now()

	if c.config.RunTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}

	credential, err := c.credentials.Credential(ctx)
	if err != nil {
		c.metrics.run(string(StageCredential))

		return entity.Report{}, &RunError{Stage: StageCredential, Err: err}
	}

	policy := c.config.Retry
	policy.OnRetry = func(attempt uint, delay time.Duration, err error) {
		c.logInfo(1, "Retrying subscription discovery", "attempt", attempt, "delay", delay, "error", err.Error())
	}

	subscriptions, err := retry.Call(ctx, policy, func(ctx context.Context) ([]entity.Subscription, error) {
		return c.discovery.ListSubscriptions(ctx, credential)
	})
	if err != nil {
		c.metrics.run(string(StageDiscovery))

		return entity.Report{}, &RunError{Stage: StageDiscovery, Err: err}
	}

	ids, err := c.filter(subscriptions)
	if err != nil {
		c.metrics.run(string(StageFilter))

		return entity.Report{}, &RunError{Stage: StageFilter, Err: err}
	}

	c.logInfo(0, "Subscriptions discovered", "discovered", len(subscriptions), "targeted", len(ids))

	report := c.Run(ctx, credential, ids, c.config.MaxConcurrency)
	report.StartedAt = startedAt

	c.metrics.run("completed")

	return report, nil
}

// Run polls every subscription with at most maxConcurrency workers in flight.
// The Report holds one result per id, in the order of ids.
func (c Coordinator) Run(ctx context.Context, credential Credential, ids []entity.SubscriptionID, maxConcurrency int) entity.Report {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	startedAt := c.clock.Now()
	outcomes := make([]WorkerOutcome, len(ids))

	group := errgroup.Group{}
	group.SetLimit(maxConcurrency)

	for i, id := range ids {
		i, id := i, id

		group.Go(func() error {
			outcomes[i] = c.worker.Run(ctx, credential, id)

			return nil
		})
	}

	// Workers never return an error.
	_ = group.Wait()

	results := make([]entity.SubscriptionResult, len(outcomes))
	dropped := 0

	for i, o := range outcomes {
		results[i] = o.Result
		dropped += o.Dropped
	}

	report := entity.Report{
		RunID:       c.newRunID(),
		TenantID:    c.config.TenantID,
		StartedAt:   startedAt,
		Results:     results,
		Summary:     Summarize(results, dropped, c.labeler),
		GeneratedAt: c.clock.Now(),
	}

	c.logInfo(0, "Run completed",
		"runId", report.RunID,
		"succeeded", report.Summary.Succeeded,
		"failed", report.Summary.Failed,
		"records", report.Summary.Records,
		"dropped", report.Summary.DroppedRecords,
	)

	return report
}

func (c Coordinator) filter(subscriptions []entity.Subscription) ([]entity.SubscriptionID, error) {
	allowed := c.config.AllowedSubscriptions
	denied := c.config.DeniedSubscriptions

	if len(allowed) > 0 && len(denied) > 0 {
		return nil, validation.ErrMutuallyExclusive
	}

	err := validation.ValidateTenantMembership(allowed, subscriptions)
	if err != nil {
		return nil, fmt.Errorf("allowed subscriptions: %w", err)
	}

	err = validation.ValidateTenantMembership(denied, subscriptions)
	if err != nil {
		return nil, fmt.Errorf("denied subscriptions: %w", err)
	}

	allowedSet := toSet(allowed)
	deniedSet := toSet(denied)

	ret := make([]entity.SubscriptionID, 0, len(subscriptions))

	for _, s := range subscriptions {
		if _, ok := allowedSet[s.ID]; len(allowed) > 0 && !ok {
			continue
		}

		if _, ok := deniedSet[s.ID]; ok {
			continue
		}

		ret = append(ret, s.ID)
	}

	return ret, nil
}

func toSet(ids []entity.SubscriptionID) map[entity.SubscriptionID]struct{} {
	ret := make(map[entity.SubscriptionID]struct{}, len(ids))
	for _, id := range ids {
		ret[id] = struct{}{}
	}

	return ret
}

func (c Coordinator) logInfo(level int, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.V(level).Info(msg, keysAndValues...)
}
