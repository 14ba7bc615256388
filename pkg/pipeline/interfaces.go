package pipeline

import "context"

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_pipeline.go

// Processing consumes one payload. Report sinks and their decorators all
// implement it.
type Processing[Payload any] interface {
	Process(context.Context, Payload) error
}

type ErrorProcessing Processing[ErrProcessingError]

// ProcessingFunc adapts a function to Processing.
type ProcessingFunc[Payload any] func(context.Context, Payload) error

func (f ProcessingFunc[Payload]) Process(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}
