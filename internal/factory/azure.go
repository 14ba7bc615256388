package factory

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/go-logr/logr"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/provider/azure"
	"github.com/schubergphilis/azureenergylabelerlib/internal/validation"
)

const applicationID = "compliance-poller"

// AzureProviders groups the engine collaborators backed by Azure.
type AzureProviders struct {
	TokenCredential azcore.TokenCredential
	Credentials     azure.Credentials
	Discovery       azure.Discovery
	ResourceGraph   azure.ResourceGraph
}

func CreateAzureProviders(conf config.Azure, labeler config.Labeler, logger logr.Logger) (AzureProviders, error) {
	frameworks, err := validation.ValidateFrameworks(labeler.Frameworks)
	if err != nil {
		return AzureProviders{}, fmt.Errorf("failed to validate frameworks: %w", err)
	}

	credential, err := azure.NewTokenCredential(azure.CredentialConfig{
		TenantID:     conf.TenantID,
		ClientID:     conf.Creds.ClientID,
		ClientSecret: conf.Creds.ClientSecret,
	})
	if err != nil {
		return AzureProviders{}, fmt.Errorf("failed to create azure credential: %w", err)
	}

	options := armClientOptions()

	return AzureProviders{
		TokenCredential: credential,
		Credentials:     azure.NewCredentials(credential),
		Discovery:       azure.NewDiscovery(options),
		ResourceGraph:   azure.NewResourceGraph(frameworks, options).WithLogger(logger),
	}, nil
}

// armClientOptions turns the SDK retries off: the engine retries provider
// calls itself and counts them.
func armClientOptions() *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry:     policy.RetryOptions{MaxRetries: -1},
			Telemetry: policy.TelemetryOptions{ApplicationID: applicationID},
		},
	}
}

// CreateBlobClient targets the storage account of a blob destination.
func CreateBlobClient(serviceURL string, credential azcore.TokenCredential) (*azblob.Client, error) {
	ret, err := azblob.NewClient(serviceURL, credential, &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: applicationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return ret, nil
}
