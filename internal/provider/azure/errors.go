package azure

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

// Classify maps an Azure SDK error to the ErrorKind the engine retries on.
func Classify(err error) entity.ErrorKind {
	if err == nil {
		return entity.ErrorKindUnknown
	}

	var providerErr *entity.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}

	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return entity.ErrorKindAuth
	}

	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		return classifyStatus(responseErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return entity.ErrorKindTimeout
		}

		return entity.ErrorKindServer
	}

	return entity.ErrorKindUnknown
}

func classifyStatus(status int) entity.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return entity.ErrorKindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return entity.ErrorKindAuth
	case status == http.StatusNotFound:
		return entity.ErrorKindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return entity.ErrorKindTimeout
	case status >= http.StatusInternalServerError:
		return entity.ErrorKindServer
	case status >= http.StatusBadRequest:
		return entity.ErrorKindBadRequest
	default:
		return entity.ErrorKindUnknown
	}
}

// wrap attaches the classified kind so the retry classifier can read it.
func wrap(err error) error {
	if err == nil {
		return nil
	}

	var providerErr *entity.ProviderError
	if errors.As(err, &providerErr) {
		return err
	}

	return entity.NewProviderError(Classify(err), err)
}
