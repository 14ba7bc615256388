package labeling_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/labeling"
)

func openRecords(high, medium, low int) []entity.ComplianceRecord {
	ret := make([]entity.ComplianceRecord, 0, high+medium+low)

	add := func(n int, severity entity.Severity) {
		for i := 0; i < n; i++ {
			ret = append(ret, entity.ComplianceRecord{
				Kind:           entity.QueryKindControlDetails,
				ResourceID:     fmt.Sprintf("r-%s-%d", severity, i),
				AssessmentName: "a",
				Status:         entity.StatusUnhealthy,
				Severity:       severity,
			})
		}
	}

	add(high, entity.SeverityHigh)
	add(medium, entity.SeverityMedium)
	add(low, entity.SeverityLow)

	return ret
}

func TestSubscriptionLabel(t *testing.T) {
	labeler, err := labeling.NewLabeler(nil, nil)
	require.NoError(t, err)

	type testCase struct {
		name              string
		high, medium, low int
		expected          string
	}

	cases := []testCase{
		{name: "no finding", expected: "A"},
		{name: "medium and low within A", medium: 10, low: 20, expected: "A"},
		{name: "one high", high: 1, expected: "B"},
		{name: "many low", low: 61, expected: "D"},
		{name: "limit of E", high: 25, medium: 50, low: 100, expected: "E"},
		{name: "beyond E", high: 26, expected: "F"},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, c.expected, labeler.SubscriptionLabel(openRecords(c.high, c.medium, c.low)))
		})
	}
}

func TestSubscriptionLabelIgnoresClosedRecords(t *testing.T) {
	labeler, err := labeling.NewLabeler(nil, nil)
	require.NoError(t, err)

	records := openRecords(5, 0, 0)
	for i := range records {
		records[i].Status = entity.StatusHealthy
	}

	assert.Equal(t, "A", labeler.SubscriptionLabel(records))
}

func TestSubscriptionLabelCountsControlDetailsOnly(t *testing.T) {
	labeler, err := labeling.NewLabeler(nil, nil)
	require.NoError(t, err)

	// six failing medium assessments, each also returned as a control detail
	controls := openRecords(0, 6, 0)

	records := make([]entity.ComplianceRecord, 0, 2*len(controls))

	for _, c := range controls {
		assessment := c
		assessment.Kind = entity.QueryKindAssessments

		records = append(records, assessment, c)
	}

	assert.Equal(t, "A", labeler.SubscriptionLabel(records))

	// out of framework findings only show up as assessments
	for i := range records {
		records[i].Kind = entity.QueryKindAssessments
		records[i].Severity = entity.SeverityHigh
	}

	assert.Equal(t, "A", labeler.SubscriptionLabel(records))
}

func TestTenantLabel(t *testing.T) {
	labeler, err := labeling.NewLabeler(nil, nil)
	require.NoError(t, err)

	results := []entity.SubscriptionResult{
		entity.NewSuccess("a", nil),
		entity.NewSuccess("b", openRecords(1, 0, 0)),
		entity.NewSuccess("c", openRecords(16, 0, 0)),
		entity.NewFailure("d", entity.ErrorKindAuth, "denied"),
	}

	labels := labeler.Label(results)

	assert.Equal(t, map[entity.SubscriptionID]string{"a": "A", "b": "B", "c": "D"}, labels.Subscriptions)
	assert.InDelta(t, 75.0, labels.Coverage, 0.001)
	// A or better: 33%, B or better: 66%, C or better: 66% >= 50
	assert.Equal(t, "C", labels.Tenant)
}

func TestTenantLabelWithoutSuccess(t *testing.T) {
	labeler, err := labeling.NewLabeler(nil, nil)
	require.NoError(t, err)

	labels := labeler.Label([]entity.SubscriptionResult{entity.NewFailure("a", entity.ErrorKindTimeout, "late")})

	assert.Equal(t, labeling.WorstLabel, labels.Tenant)
	assert.Empty(t, labels.Subscriptions)
	assert.Zero(t, labels.Coverage)
}

func TestNewLabelerValidation(t *testing.T) {
	_, err := labeling.NewLabeler([]labeling.SubscriptionThreshold{{Label: "G"}}, nil)
	assert.ErrorIs(t, err, labeling.ErrInvalidThresholds)

	_, err = labeling.NewLabeler([]labeling.SubscriptionThreshold{{Label: "A", High: -1}}, nil)
	assert.ErrorIs(t, err, labeling.ErrInvalidThresholds)

	_, err = labeling.NewLabeler(nil, []labeling.TenantThreshold{{Label: "A", Percentage: 101}})
	assert.ErrorIs(t, err, labeling.ErrInvalidThresholds)

	_, err = labeling.NewLabeler(nil, []labeling.TenantThreshold{{Label: "A", Percentage: 90}, {Label: "A", Percentage: 50}})
	assert.ErrorIs(t, err, labeling.ErrInvalidThresholds)
}
