package judge

import (
	"context"

	"fieldjudge/internal/work"
)

// RawVerdict is the judge's answer before normalization: a classification
// label as the model produced it plus its free-text explanation.
type RawVerdict struct {
	Label       string
	Explanation string
	Raw         string
}

// Judge evaluates a single work unit against its evidence.
type Judge interface {
	Classify(ctx context.Context, unit work.Unit) (*RawVerdict, error)
}
