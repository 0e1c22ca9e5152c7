package verdict

import (
	"fmt"
	"strings"
)

// Classification is the four-way outcome of validating one field against its evidence.
type Classification string

const (
	Match   Classification = "match"
	Unmatch Classification = "unmatch"
	Unsure  Classification = "unsure"
	NoData  Classification = "nodata"
)

// Provenance records which stage produced a verdict. Downstream metrics need to
// tell genuine judge uncertainty apart from infrastructure failure, so retry
// exhaustion gets its own value instead of reusing "judge".
type Provenance string

const (
	FromPrecheck Provenance = "precheck"
	FromJudge    Provenance = "judge"
	FromFailure  Provenance = "failure"
)

// Verdict is the resolved classification for one field evaluation.
type Verdict struct {
	Classification Classification `json:"classification"`
	Explanation    string         `json:"explanation"`
	Provenance     Provenance     `json:"provenance"`
}

// UnknownLabelError reports a judge label outside the known taxonomy.
type UnknownLabelError struct {
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown classification label: %q", e.Label)
}

// labelSynonyms maps judge output labels onto the taxonomy. Keys are compared
// after trimming and lowercasing.
var labelSynonyms = map[string]Classification{
	"match":        Match,
	"matched":      Match,
	"yes":          Match,
	"correct":      Match,
	"valid":        Match,
	"supported":    Match,
	"unmatch":      Unmatch,
	"unmatched":    Unmatch,
	"mismatch":     Unmatch,
	"no":           Unmatch,
	"incorrect":    Unmatch,
	"invalid":      Unmatch,
	"contradicted": Unmatch,
	"unsure":       Unsure,
	"uncertain":    Unsure,
	"ambiguous":    Unsure,
	"insufficient": Unsure,
	"nodata":       NoData,
	"no_data":      NoData,
	"no-data":      NoData,
	"no data":      NoData,
	"no evidence":  NoData,
	"absent":       NoData,
}

// Normalize maps a raw judge label onto the taxonomy. An unrecognized label is
// an error, never a silent default: defaulting would corrupt downstream
// reliability metrics.
func Normalize(label string) (Classification, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if c, ok := labelSynonyms[key]; ok {
		return c, nil
	}
	return "", &UnknownLabelError{Label: label}
}

// Valid reports whether c is one of the four known classifications.
func (c Classification) Valid() bool {
	switch c {
	case Match, Unmatch, Unsure, NoData:
		return true
	}
	return false
}
