package common

import (
	"fmt"

	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

func NewErrProcessingError(err error, category string, target string, reason string, args ...interface{}) pipeline.ErrProcessingError {
	cause := fmt.Sprintf(reason, args...)
	dErr := fmt.Errorf("%s: %w", cause, err)

	return pipeline.NewErrProcessingError(dErr, category, target)
}

func NewRetryableErrProcessingError(err error, category string, target string, reason string, args ...interface{}) pipeline.ErrProcessingError {
	return NewErrProcessingError(pipeline.NewErrRetryableError(err), category, target, reason, args...)
}
