package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

type BlobAPI interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobWriter uploads reports to an Azure storage container.
type BlobWriter struct {
	client BlobAPI

	container string
	prefix    string
}

var _ repo.ReportWriter = BlobWriter{}

func NewBlobWriter(client BlobAPI, container string, prefix string) BlobWriter {
	return BlobWriter{
		client:    client,
		container: container,
		prefix:    prefix,
	}
}

func (w BlobWriter) target() string {
	return fmt.Sprintf("blob://%s/%s", w.container, w.prefix)
}

func (w BlobWriter) WriteReport(ctx context.Context, report entity.Report) error {
	b, err := marshal(report)
	if err != nil {
		return pipeline.NewErrProcessingError(err, pipeline.MarshalCategory, w.target())
	}

	name, err := computeObjectKey(w.prefix, report)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to compute blob name: %w", err), pipeline.ValidateCategory, w.target())
	}

	options := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	}

	_, err = w.client.UploadBuffer(ctx, w.container, name, b, options)
	if err != nil {
		err = fmt.Errorf("failed to upload blob: %w", err)

		if isBlobRetryable(err) {
			return pipeline.NewRetryableErrProcessingError(err, pipeline.WriteCategory, w.target())
		}

		return pipeline.NewErrProcessingError(err, pipeline.WriteCategory, w.target())
	}

	return nil
}

func isBlobRetryable(err error) bool {
	if bloberror.HasCode(err, bloberror.ServerBusy, bloberror.OperationTimedOut, bloberror.InternalError) {
		return true
	}

	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.StatusCode == http.StatusTooManyRequests || responseErr.StatusCode >= http.StatusInternalServerError
	}

	return false
}
