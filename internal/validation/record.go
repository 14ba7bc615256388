package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

const (
	FieldResourceID     = "resourceId"
	FieldAssessmentName = "assessmentName"
	FieldStatus         = "status"
	FieldSeverity       = "severity"
	FieldMetadata       = "metadata"
)

var (
	errMissingKey       = errors.New("missing key")
	errFieldInvalidType = errors.New("field type was not the expected one")
)

type ValidationError struct {
	Field  string
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Validate checks raw against the compliance record shape and normalizes it.
// Only a missing or mistyped required field fails. Unrecognized status and
// severity values degrade to Unknown and Informational, a severity that is
// not a string is Informational and metadata that is not a map is dropped.
func Validate(raw entity.RawRecord) (entity.ComplianceRecord, error) {
	resourceID, err := extractString(raw, FieldResourceID)
	if err != nil {
		return entity.ComplianceRecord{}, err
	}

	assessmentName, err := extractString(raw, FieldAssessmentName)
	if err != nil {
		return entity.ComplianceRecord{}, err
	}

	status, err := extractString(raw, FieldStatus)
	if err != nil {
		return entity.ComplianceRecord{}, err
	}

	ret := entity.ComplianceRecord{
		ResourceID:     resourceID,
		AssessmentName: assessmentName,
		Status:         NormalizeStatus(status),
		Severity:       entity.SeverityInformational,
		Metadata:       extractMetadata(raw),
	}

	if severity, ok := raw[FieldSeverity].(string); ok {
		ret.Severity = NormalizeSeverity(severity)
	}

	return ret, nil
}

func NormalizeStatus(value string) entity.Status {
	switch canonical(value) {
	case "healthy", "passed", "compliant":
		return entity.StatusHealthy
	case "unhealthy", "failed", "noncompliant":
		return entity.StatusUnhealthy
	case "notapplicable", "skipped", "unsupported", "exempt":
		return entity.StatusNotApplicable
	default:
		return entity.StatusUnknown
	}
}

func NormalizeSeverity(value string) entity.Severity {
	switch canonical(value) {
	case "high", "critical":
		return entity.SeverityHigh
	case "medium":
		return entity.SeverityMedium
	case "low":
		return entity.SeverityLow
	default:
		return entity.SeverityInformational
	}
}

// canonical lowers value and drops separators: "Not Applicable" -> "notapplicable".
func canonical(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		default:
			return r
		}
	}, strings.ToLower(strings.TrimSpace(value)))
}

func extractString(raw entity.RawRecord, key string) (string, error) {
	value, present := raw[key]
	if !present || value == nil {
		return "", &ValidationError{Field: key, Reason: errMissingKey}
	}

	ret, ok := value.(string)
	if !ok {
		return "", &ValidationError{Field: key, Reason: fmt.Errorf("%w: got %T", errFieldInvalidType, value)}
	}

	return ret, nil
}

func extractMetadata(raw entity.RawRecord) map[string]string {
	value, present := raw[FieldMetadata]
	if !present || value == nil {
		return nil
	}

	var source map[string]any

	switch v := value.(type) {
	case map[string]any:
		source = v
	case entity.RawRecord:
		source = v
	case map[string]string:
		if len(v) == 0 {
			return nil
		}

		ret := make(map[string]string, len(v))
		for k, s := range v {
			ret[k] = s
		}

		return ret
	default:
		return nil
	}

	ret := make(map[string]string, len(source))

	for k, v := range source {
		s, ok := stringify(v)
		if !ok {
			continue
		}

		ret[k] = s
	}

	if len(ret) == 0 {
		return nil
	}

	return ret
}

// stringify converts scalars. Nested values and nulls are not kept.
func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
