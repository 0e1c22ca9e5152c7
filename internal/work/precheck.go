package work

import (
	"strings"

	"fieldjudge/internal/verdict"
)

const (
	explanationEmptyValue    = "field value is empty; nothing to validate"
	explanationEmptyEvidence = "no evidence text available for this record"
)

// Precheck resolves trivially classifiable units without touching the cache or
// the judge. It returns nil when the unit needs a judge call. This runs before
// any cache lookup or external call: it is the primary cost control.
func Precheck(u Unit) *verdict.Verdict {
	if strings.TrimSpace(u.Value) == "" {
		return &verdict.Verdict{
			Classification: verdict.NoData,
			Explanation:    explanationEmptyValue,
			Provenance:     verdict.FromPrecheck,
		}
	}
	if strings.TrimSpace(u.Evidence) == "" {
		return &verdict.Verdict{
			Classification: verdict.NoData,
			Explanation:    explanationEmptyEvidence,
			Provenance:     verdict.FromPrecheck,
		}
	}
	return nil
}
