package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

const keyTemplate = "<prefix>/<year>/<month>/<day>/<runid>.json"

var ErrMissingRunID = errors.New("report has no run id")

// computeObjectKey places reports by generation day, in UTC.
func computeObjectKey(prefix string, report entity.Report) (string, error) {
	if report.RunID == "" {
		return "", ErrMissingRunID
	}

	generatedAt := report.GeneratedAt.UTC()

	template := strings.NewReplacer(
		"<prefix>", prefix,
		"<year>", fmt.Sprintf("%04d", generatedAt.Year()),
		"<month>", fmt.Sprintf("%02d", generatedAt.Month()),
		"<day>", fmt.Sprintf("%02d", generatedAt.Day()),
		"<runid>", report.RunID,
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/"), nil
}

func marshal(report entity.Report) ([]byte, error) {
	b, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return b, nil
}
