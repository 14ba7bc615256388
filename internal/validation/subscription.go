package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

const SubscriptionIDLength = 36

var (
	ErrInvalidSubscriptionID   = errors.New("invalid subscription id")
	ErrMutuallyExclusive       = errors.New("allowed and denied subscriptions are mutually exclusive")
	ErrSubscriptionNotInTenant = errors.New("subscription not part of the tenant")
	ErrInvalidFrameworks       = errors.New("invalid frameworks")
	ErrNoFramework             = errors.New("at least one framework is required")
)

func ValidateSubscriptionID(id string) error {
	if len(id) != SubscriptionIDLength {
		return fmt.Errorf("%w %q: expected %d characters", ErrInvalidSubscriptionID, id, SubscriptionIDLength)
	}

	return nil
}

// ValidateSubscriptionIDs validates every id, drops empty ones and duplicates,
// and returns them sorted.
func ValidateSubscriptionIDs(ids []string) ([]entity.SubscriptionID, error) {
	set := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		err := ValidateSubscriptionID(id)
		if err != nil {
			return nil, err
		}

		set[id] = struct{}{}
	}

	sorted := make([]string, 0, len(set))
	for id := range set {
		sorted = append(sorted, id)
	}

	sort.Strings(sorted)

	ret := make([]entity.SubscriptionID, 0, len(sorted))
	for _, id := range sorted {
		ret = append(ret, entity.SubscriptionID(id))
	}

	return ret, nil
}

// ValidateAllowDeny validates both lists. Only one of them may be non empty.
func ValidateAllowDeny(allowed, denied []string) ([]entity.SubscriptionID, []entity.SubscriptionID, error) {
	allowedIDs, err := ValidateSubscriptionIDs(allowed)
	if err != nil {
		return nil, nil, fmt.Errorf("allowed subscriptions: %w", err)
	}

	deniedIDs, err := ValidateSubscriptionIDs(denied)
	if err != nil {
		return nil, nil, fmt.Errorf("denied subscriptions: %w", err)
	}

	if len(allowedIDs) > 0 && len(deniedIDs) > 0 {
		return nil, nil, ErrMutuallyExclusive
	}

	return allowedIDs, deniedIDs, nil
}

// ValidateTenantMembership fails when an id is not part of the tenant subscriptions.
func ValidateTenantMembership(ids []entity.SubscriptionID, tenant []entity.Subscription) error {
	known := make(map[entity.SubscriptionID]struct{}, len(tenant))
	for _, s := range tenant {
		known[s.ID] = struct{}{}
	}

	missing := make([]string, 0)

	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, string(id))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotInTenant, strings.Join(missing, ", "))
	}

	return nil
}
