package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

type Stage string

const (
	StageCredential Stage = "credential"
	StageDiscovery  Stage = "discovery"
	StageFilter     Stage = "filter"
)

// RunError is returned when a run fails before any worker is dispatched.
// Once workers run, failures are reported as data in the Report.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed at %s stage: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ClassifyProviderError is the default retry classifier for provider calls.
func ClassifyProviderError(err error) retry.Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}

	var pErr *entity.ProviderError
	if errors.As(err, &pErr) && pErr.Kind.Transient() {
		return retry.Transient
	}

	return retry.Permanent
}

// failureKind maps a worker error to the kind reported in its Failure.
func failureKind(ctx context.Context, err error) entity.ErrorKind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return entity.ErrorKindTimeout
	}

	return entity.KindOf(err)
}
