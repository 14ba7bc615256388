package pipeline

import (
	"errors"
	"fmt"
)

// ErrProcessingError

type ErrProcessingError struct {
	error
	Category string
	// Target names what the payload was being sent to, when known.
	Target string
}

const (
	UnknownCategory   = "unknown"
	MarshalCategory   = "marshal"
	PanicCategory     = "panic"
	WriteCategory     = "write"
	ValidateCategory  = "validate"
	emptyCategoryName = "empty_category"
)

func NewErrProcessingError(err error, category string, target string) ErrProcessingError {
	return ErrProcessingError{
		error:    err,
		Category: category,
		Target:   target,
	}
}

func (e ErrProcessingError) Unwrap() error {
	return e.error
}

// AsErrProcessingError returns err as an ErrProcessingError, wrapping it in the
// unknown category when it is not one already.
func AsErrProcessingError(err error) ErrProcessingError {
	ret := ErrProcessingError{}
	if errors.As(err, &ret) {
		return ret
	}

	return NewErrProcessingError(err, UnknownCategory, "")
}

// ErrRetryableError

var ErrRetryableError = errors.New("retryable error")

func NewErrRetryableError(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryableError, err)
}

func NewRetryableErrProcessingError(err error, category string, target string) ErrProcessingError {
	return NewErrProcessingError(NewErrRetryableError(err), category, target)
}
