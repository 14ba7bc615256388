package validation

import (
	"fmt"
	"sort"
	"strings"
)

const (
	FrameworkMCSB                   = "Microsoft cloud security benchmark"
	FrameworkAzureSecurityBenchmark = "Azure Security Benchmark"
	FrameworkSOCTSP                 = "SOC TSP"
	FrameworkAzureCIS110            = "Azure CIS 1.1.0"
)

var (
	SupportedFrameworks = []string{
		FrameworkMCSB,
		FrameworkAzureSecurityBenchmark,
		FrameworkSOCTSP,
		FrameworkAzureCIS110,
	}

	DefaultFrameworks = []string{
		FrameworkMCSB,
		FrameworkAzureCIS110,
	}
)

// ValidateFrameworks returns the de-duplicated frameworks, sorted.
func ValidateFrameworks(frameworks []string) ([]string, error) {
	supported := make(map[string]struct{}, len(SupportedFrameworks))
	for _, f := range SupportedFrameworks {
		supported[f] = struct{}{}
	}

	set := make(map[string]struct{}, len(frameworks))
	unknown := make([]string, 0)

	for _, f := range frameworks {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		if _, ok := supported[f]; !ok {
			unknown = append(unknown, f)

			continue
		}

		set[f] = struct{}{}
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrameworks, strings.Join(unknown, ", "))
	}

	if len(set) == 0 {
		return nil, ErrNoFramework
	}

	ret := make([]string, 0, len(set))
	for f := range set {
		ret = append(ret, f)
	}

	sort.Strings(ret)

	return ret, nil
}
