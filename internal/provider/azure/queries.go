package azure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

// Every query projects the columns the record validator expects:
// resourceId, assessmentName, status, severity and a metadata bag.

const assessmentsQuery = `securityresources
| where type == "microsoft.security/assessments"
| extend resourceId = tolower(tostring(properties.resourceDetails.Id))
| extend assessmentName = name
| extend status = tostring(properties.status.code)
| extend severity = tostring(properties.metadata.severity)
| project resourceId, assessmentName, status, severity,
    metadata = bag_pack(
        "displayName", tostring(properties.displayName),
        "firstEvaluationDate", tostring(properties.status.firstEvaluationDate),
        "statusChangeDate", tostring(properties.status.statusChangeDate),
        "portalLink", tostring(properties.links.azurePortal))`

const regulatoryStandardsQuery = `securityresources
| where type == "microsoft.security/regulatorycompliancestandards"
| extend complianceStandardId = replace("-", " ", name)
| where complianceStandardId in~ (%s)
| project resourceId = id,
    assessmentName = complianceStandardId,
    status = tostring(properties.state),
    severity = "",
    metadata = bag_pack(
        "passedControls", toint(properties.passedControls),
        "failedControls", toint(properties.failedControls),
        "skippedControls", toint(properties.skippedControls))`

const controlDetailsQuery = `securityresources
| where type == "microsoft.security/regulatorycompliancestandards/regulatorycompliancecontrols/regulatorycomplianceassessments"
| extend complianceStandardId = replace("-", " ", extract(@'/regulatoryComplianceStandards/([^/]*)', 1, id))
| where complianceStandardId in~ (%s)
| extend complianceControlId = extract(@'/regulatoryComplianceControls/([^/]*)', 1, id)
| join kind = leftouter (
    securityresources
    | where type == "microsoft.security/assessments"
    | project subscriptionId, name, assessmentSeverity = tostring(properties.metadata.severity)
) on subscriptionId, name
| project resourceId = id,
    assessmentName = name,
    status = tostring(properties.state),
    severity = assessmentSeverity,
    metadata = bag_pack(
        "framework", complianceStandardId,
        "controlId", complianceControlId,
        "failedResources", toint(properties.failedResources),
        "skippedResources", toint(properties.skippedResources))
| order by assessmentName asc`

// Query returns the Kusto query for kind. Standards and control details are
// restricted to frameworks.
func Query(kind entity.QueryKind, frameworks []string) (string, error) {
	switch kind {
	case entity.QueryKindAssessments:
		return assessmentsQuery, nil
	case entity.QueryKindRegulatoryStandards:
		return fmt.Sprintf(regulatoryStandardsQuery, quoteAll(frameworks)), nil
	case entity.QueryKindControlDetails:
		return fmt.Sprintf(controlDetailsQuery, quoteAll(frameworks)), nil
	default:
		return "", fmt.Errorf("unsupported query kind %q", kind)
	}
}

func quoteAll(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, strconv.Quote(v))
	}

	return strings.Join(quoted, ", ")
}
