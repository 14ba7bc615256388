package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	s3client S3API

	bucket string
	prefix string
}

var _ repo.ReportWriter = S3Writer{}

func NewS3Writer(s3client S3API, bucket string, prefix string) S3Writer {
	return S3Writer{
		s3client: s3client,
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (w S3Writer) target() string {
	return fmt.Sprintf("s3://%s/%s", w.bucket, w.prefix)
}

func (w S3Writer) WriteReport(ctx context.Context, report entity.Report) error {
	b, err := marshal(report)
	if err != nil {
		return pipeline.NewErrProcessingError(err, pipeline.MarshalCategory, w.target())
	}

	key, err := computeObjectKey(w.prefix, report)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to compute object key: %w", err), pipeline.ValidateCategory, w.target())
	}

	params := &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	}

	_, err = w.s3client.PutObject(ctx, params)
	if err != nil {
		err = fmt.Errorf("failed to write in s3: %w", err)

		if isS3Retryable(err) {
			return pipeline.NewRetryableErrProcessingError(err, pipeline.WriteCategory, w.target())
		}

		return pipeline.NewErrProcessingError(err, pipeline.WriteCategory, w.target())
	}

	return nil
}

var retryableS3Codes = map[string]struct{}{
	"SlowDown":           {},
	"RequestTimeout":     {},
	"InternalError":      {},
	"ServiceUnavailable": {},
}

func isS3Retryable(err error) bool {
	var responseErr *awshttp.ResponseError
	if errors.As(err, &responseErr) {
		status := responseErr.HTTPStatusCode()
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return true
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := retryableS3Codes[apiErr.ErrorCode()]

		return ok
	}

	return false
}
