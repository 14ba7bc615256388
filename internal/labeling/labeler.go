package labeling

import (
	"errors"
	"fmt"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

const WorstLabel = "F"

var ErrInvalidThresholds = errors.New("invalid thresholds")

// SubscriptionThreshold is the maximum number of open findings per severity
// a subscription may have to get Label.
type SubscriptionThreshold struct {
	Label  string
	High   int
	Medium int
	Low    int
}

// TenantThreshold is the minimum share of labeled subscriptions that must
// reach Label or better for the tenant to get Label.
type TenantThreshold struct {
	Label      string
	Percentage float64
}

var (
	DefaultSubscriptionThresholds = []SubscriptionThreshold{
		{Label: "A", High: 0, Medium: 10, Low: 20},
		{Label: "B", High: 10, Medium: 20, Low: 40},
		{Label: "C", High: 15, Medium: 30, Low: 60},
		{Label: "D", High: 20, Medium: 40, Low: 80},
		{Label: "E", High: 25, Medium: 50, Low: 100},
	}

	DefaultTenantThresholds = []TenantThreshold{
		{Label: "A", Percentage: 90},
		{Label: "B", Percentage: 70},
		{Label: "C", Percentage: 50},
		{Label: "D", Percentage: 30},
		{Label: "E", Percentage: 20},
	}

	validLabels = []string{"A", "B", "C", "D", "E"}
)

type Labeler struct {
	subscription []SubscriptionThreshold
	tenant       []TenantThreshold
}

// NewLabeler validates both tables. Empty tables fall back to the defaults.
func NewLabeler(subscription []SubscriptionThreshold, tenant []TenantThreshold) (Labeler, error) {
	if len(subscription) == 0 {
		subscription = DefaultSubscriptionThresholds
	}

	if len(tenant) == 0 {
		tenant = DefaultTenantThresholds
	}

	err := validateSubscriptionThresholds(subscription)
	if err != nil {
		return Labeler{}, err
	}

	err = validateTenantThresholds(tenant)
	if err != nil {
		return Labeler{}, err
	}

	return Labeler{
		subscription: subscription,
		tenant:       tenant,
	}, nil
}

// SubscriptionLabel returns the first label whose limits hold for the open
// (Unhealthy) findings, or F. Findings are the control detail records: they
// are restricted to the selected frameworks, and the assessment rows describe
// the same findings again.
func (l Labeler) SubscriptionLabel(records []entity.ComplianceRecord) string {
	high, medium, low := 0, 0, 0

	for _, r := range records {
		if r.Kind != entity.QueryKindControlDetails || r.Status != entity.StatusUnhealthy {
			continue
		}

		switch r.Severity {
		case entity.SeverityHigh:
			high++
		case entity.SeverityMedium:
			medium++
		case entity.SeverityLow:
			low++
		}
	}

	for _, t := range l.subscription {
		if high <= t.High && medium <= t.Medium && low <= t.Low {
			return t.Label
		}
	}

	return WorstLabel
}

// Label computes the labels of every successful subscription and the tenant
// label. Failed subscriptions are not labeled and lower the coverage.
func (l Labeler) Label(results []entity.SubscriptionResult) entity.Labels {
	ret := entity.Labels{
		Tenant:        WorstLabel,
		Subscriptions: make(map[entity.SubscriptionID]string),
	}

	counts := make(map[string]int)

	for _, r := range results {
		if !r.IsSuccess() {
			continue
		}

		label := l.SubscriptionLabel(r.Success.Records)
		ret.Subscriptions[r.Success.SubscriptionID] = label
		counts[label]++
	}

	labeled := len(ret.Subscriptions)

	if len(results) > 0 {
		ret.Coverage = float64(labeled) * 100 / float64(len(results))
	}

	if labeled == 0 {
		return ret
	}

	cumulative := 0

	for _, t := range l.tenant {
		cumulative += counts[t.Label]

		if float64(cumulative)*100/float64(labeled) >= t.Percentage {
			ret.Tenant = t.Label

			return ret
		}
	}

	return ret
}

func validateSubscriptionThresholds(thresholds []SubscriptionThreshold) error {
	labels := make([]string, 0, len(thresholds))

	for _, t := range thresholds {
		if t.High < 0 || t.Medium < 0 || t.Low < 0 {
			return fmt.Errorf("%w: negative count for label %s", ErrInvalidThresholds, t.Label)
		}

		labels = append(labels, t.Label)
	}

	return validateLabels(labels)
}

func validateTenantThresholds(thresholds []TenantThreshold) error {
	labels := make([]string, 0, len(thresholds))

	for _, t := range thresholds {
		if t.Percentage < 0 || t.Percentage > 100 {
			return fmt.Errorf("%w: percentage %v out of range for label %s", ErrInvalidThresholds, t.Percentage, t.Label)
		}

		labels = append(labels, t.Label)
	}

	return validateLabels(labels)
}

func validateLabels(labels []string) error {
	seen := make(map[string]bool, len(labels))

	for _, label := range labels {
		valid := false

		for _, v := range validLabels {
			if label == v {
				valid = true

				break
			}
		}

		if !valid {
			return fmt.Errorf("%w: unexpected label %q", ErrInvalidThresholds, label)
		}

		if seen[label] {
			return fmt.Errorf("%w: duplicated label %q", ErrInvalidThresholds, label)
		}

		seen[label] = true
	}

	return nil
}
