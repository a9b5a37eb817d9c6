package checksum

import "github.com/rotisserie/eris"

// Policy decides how a dirty verification report gates ingestion.
type Policy string

const (
	// PolicyWarn logs the findings and proceeds.
	PolicyWarn Policy = "warn"
	// PolicyFail refuses to proceed when the report is not clean.
	PolicyFail Policy = "fail"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyWarn, PolicyFail:
		return Policy(s), nil
	}
	return "", eris.Errorf("checksum: unknown policy %q (want warn or fail)", s)
}
