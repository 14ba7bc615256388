package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/go-logr/logr"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/engine"
	"github.com/schubergphilis/azureenergylabelerlib/internal/validation"
)

const (
	pageSize = 1000
	maxPages = 100
)

var (
	ErrUnexpectedCredential = errors.New("credential is not an azcore.TokenCredential")
	ErrTooManyPages         = errors.New("too many result pages")
)

// ResourcesAPI is the part of armresourcegraph.Client used here.
type ResourcesAPI interface {
	Resources(ctx context.Context, query armresourcegraph.QueryRequest, options *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error)
}

type ResourcesAPIFactory func(credential azcore.TokenCredential) (ResourcesAPI, error)

// ResourceGraph runs compliance queries through Azure Resource Graph.
type ResourceGraph struct {
	newClient  ResourcesAPIFactory
	frameworks []string

	logger *logr.Logger
}

var _ engine.ProviderClient = ResourceGraph{}

func NewResourceGraph(frameworks []string, options *arm.ClientOptions) ResourceGraph {
	return NewResourceGraphWithFactory(frameworks, func(credential azcore.TokenCredential) (ResourcesAPI, error) {
		return armresourcegraph.NewClient(credential, options)
	})
}

func NewResourceGraphWithFactory(frameworks []string, factory ResourcesAPIFactory) ResourceGraph {
	if len(frameworks) == 0 {
		frameworks = validation.DefaultFrameworks
	}

	return ResourceGraph{
		newClient:  factory,
		frameworks: frameworks,
	}
}

func (r ResourceGraph) WithLogger(logger logr.Logger) ResourceGraph {
	r.logger = &logger

	return r
}

func (r ResourceGraph) Fetch(ctx context.Context, credential engine.Credential, subscriptionID entity.SubscriptionID, kind entity.QueryKind) ([]entity.RawRecord, error) {
	tokenCredential, ok := credential.(azcore.TokenCredential)
	if !ok {
		return nil, entity.NewProviderError(entity.ErrorKindAuth, ErrUnexpectedCredential)
	}

	query, err := Query(kind, r.frameworks)
	if err != nil {
		return nil, entity.NewProviderError(entity.ErrorKindBadRequest, err)
	}

	client, err := r.newClient(tokenCredential)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to create resource graph client: %w", err))
	}

	request := armresourcegraph.QueryRequest{
		Query:         to.Ptr(query),
		Subscriptions: []*string{to.Ptr(string(subscriptionID))},
		Options: &armresourcegraph.QueryRequestOptions{
			ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
			Top:          to.Ptr[int32](pageSize),
		},
	}

	ret := make([]entity.RawRecord, 0)

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, entity.NewProviderError(entity.ErrorKindBadRequest, ErrTooManyPages)
		}

		resp, err := client.Resources(ctx, request, nil)
		if err != nil {
			return nil, wrap(fmt.Errorf("failed to query %s: %w", kind, err))
		}

		ret = append(ret, decodeRows(resp.Data)...)

		if resp.SkipToken == nil || *resp.SkipToken == "" {
			break
		}

		request.Options.SkipToken = resp.SkipToken
	}

	r.logInfo(2, "Resource graph query done", "subscriptionId", subscriptionID, "kind", kind, "rows", len(ret))

	return ret, nil
}

// decodeRows turns an objectArray payload into records. Rows that are not
// objects become empty records so that validation counts them as dropped.
func decodeRows(data any) []entity.RawRecord {
	rows, ok := data.([]any)
	if !ok {
		return nil
	}

	ret := make([]entity.RawRecord, 0, len(rows))

	for _, row := range rows {
		object, ok := row.(map[string]any)
		if !ok {
			ret = append(ret, entity.RawRecord{})

			continue
		}

		ret = append(ret, entity.RawRecord(object))
	}

	return ret
}

func (r ResourceGraph) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}
