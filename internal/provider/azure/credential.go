package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
)

const ManagementScope = "https://management.azure.com/.default"

type CredentialConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Credentials checks that the token credential can get a management token
// before a run starts.
type Credentials struct {
	credential azcore.TokenCredential
	scope      string
}

var _ engine.CredentialProvider = Credentials{}

// NewTokenCredential uses a client secret credential when client id and
// secret are set, the default credential chain otherwise.
func NewTokenCredential(config CredentialConfig) (azcore.TokenCredential, error) {
	if config.ClientID != "" && config.ClientSecret != "" {
		return azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	}

	return azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: config.TenantID,
	})
}

func NewCredentials(credential azcore.TokenCredential) Credentials {
	return Credentials{credential: credential, scope: ManagementScope}
}

func (c Credentials) Credential(ctx context.Context) (engine.Credential, error) {
	_, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.scope}})
	if err != nil {
		kind := Classify(err)
		if kind == entity.ErrorKindUnknown {
			kind = entity.ErrorKindAuth
		}

		return nil, entity.NewProviderError(kind, fmt.Errorf("failed to get token: %w", err))
	}

	return c.credential, nil
}
