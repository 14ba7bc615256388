package entity

import (
	"fmt"
	"time"
)

type SubscriptionID string

type Subscription struct {
	ID          SubscriptionID `json:"subscriptionId"`
	DisplayName string         `json:"displayName,omitempty"`
	State       string         `json:"state,omitempty"`
}

type QueryKind string

const (
	QueryKindAssessments         QueryKind = "assessments"
	QueryKindRegulatoryStandards QueryKind = "regulatoryStandards"
	QueryKindControlDetails      QueryKind = "controlDetails"
)

// QueryKinds lists the kinds in the order a worker fetches them.
var QueryKinds = []QueryKind{
	QueryKindAssessments,
	QueryKindRegulatoryStandards,
	QueryKindControlDetails,
}

type QueryKey struct {
	SubscriptionID SubscriptionID
	Kind           QueryKind
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%s/%s", k.SubscriptionID, k.Kind)
}

// RawRecord is a single row as returned by the provider, before validation.
type RawRecord map[string]any

type Status string

const (
	StatusHealthy       Status = "Healthy"
	StatusUnhealthy     Status = "Unhealthy"
	StatusNotApplicable Status = "NotApplicable"
	StatusUnknown       Status = "Unknown"
)

type Severity string

const (
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
)

type ComplianceRecord struct {
	// Kind is the query the record was returned by.
	Kind           QueryKind         `json:"kind,omitempty"`
	ResourceID     string            `json:"resourceId"`
	AssessmentName string            `json:"assessmentName"`
	Status         Status            `json:"status"`
	Severity       Severity          `json:"severity"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type Report struct {
	RunID       string               `json:"runId"`
	TenantID    string               `json:"tenantId,omitempty"`
	StartedAt   time.Time            `json:"startedAt"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Results     []SubscriptionResult `json:"results"`
	Summary     Summary              `json:"summary"`
}

type Summary struct {
	Subscriptions  int               `json:"subscriptions"`
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	Records        int               `json:"records"`
	DroppedRecords int               `json:"droppedRecords"`
	FailuresByKind map[ErrorKind]int `json:"failuresByKind,omitempty"`
	Labels         *Labels           `json:"labels,omitempty"`
}

type Labels struct {
	Tenant        string                    `json:"tenant"`
	Coverage      float64                   `json:"coverage"`
	Subscriptions map[SubscriptionID]string `json:"subscriptions"`
}
