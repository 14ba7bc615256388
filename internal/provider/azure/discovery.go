package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
)

type SubscriptionsAPI interface {
	NewListPager(options *armsubscriptions.ClientListOptions) *runtime.Pager[armsubscriptions.ClientListResponse]
}

type SubscriptionsAPIFactory func(credential azcore.TokenCredential) (SubscriptionsAPI, error)

// Discovery lists the subscriptions visible to the credential.
type Discovery struct {
	newClient SubscriptionsAPIFactory
}

var _ engine.SubscriptionDiscovery = Discovery{}

func NewDiscovery(options *arm.ClientOptions) Discovery {
	return NewDiscoveryWithFactory(func(credential azcore.TokenCredential) (SubscriptionsAPI, error) {
		return armsubscriptions.NewClient(credential, options)
	})
}

func NewDiscoveryWithFactory(factory SubscriptionsAPIFactory) Discovery {
	return Discovery{newClient: factory}
}

func (d Discovery) ListSubscriptions(ctx context.Context, credential engine.Credential) ([]entity.Subscription, error) {
	tokenCredential, ok := credential.(azcore.TokenCredential)
	if !ok {
		return nil, entity.NewProviderError(entity.ErrorKindAuth, ErrUnexpectedCredential)
	}

	client, err := d.newClient(tokenCredential)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to create subscriptions client: %w", err))
	}

	ret := make([]entity.Subscription, 0)

	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrap(fmt.Errorf("failed to list subscriptions: %w", err))
		}

		for _, s := range page.Value {
			if s == nil || s.SubscriptionID == nil {
				continue
			}

			subscription := entity.Subscription{ID: entity.SubscriptionID(*s.SubscriptionID)}

			if s.DisplayName != nil {
				subscription.DisplayName = *s.DisplayName
			}

			if s.State != nil {
				subscription.State = string(*s.State)
			}

			ret = append(ret, subscription)
		}
	}

	return ret, nil
}
