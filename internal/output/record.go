package output

import (
	"strconv"

	"fieldjudge/internal/verdict"
)

// Record is one row of the final artifact: the resolution of a single work
// unit. Append-only, written once per unit.
type Record struct {
	RunID          string                 `json:"run_id"`
	RecordID       string                 `json:"record_id"`
	Field          string                 `json:"field"`
	Classification verdict.Classification `json:"classification"`
	Explanation    string                 `json:"explanation"`
	Provenance     verdict.Provenance     `json:"provenance"`
	Fingerprint    string                 `json:"fingerprint"`
	CacheHit       bool                   `json:"cache_hit"`
	Attempts       int                    `json:"attempts"`
	LatencyMs      int64                  `json:"latency_ms"`
}

// csvHeader and csvRow must stay in lockstep so the CSV and JSONL artifacts
// carry the same information.
func csvHeader() []string {
	return []string{
		"run_id",
		"record_id",
		"field",
		"classification",
		"explanation",
		"provenance",
		"fingerprint",
		"cache_hit",
		"attempts",
		"latency_ms",
	}
}

func (r Record) csvRow() []string {
	return []string{
		r.RunID,
		r.RecordID,
		r.Field,
		string(r.Classification),
		r.Explanation,
		string(r.Provenance),
		r.Fingerprint,
		strconv.FormatBool(r.CacheHit),
		strconv.Itoa(r.Attempts),
		strconv.FormatInt(r.LatencyMs, 10),
	}
}
