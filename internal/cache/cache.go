package cache

import (
	"context"
	"time"

	"fieldjudge/internal/verdict"
)

// Entry is one write-once cache record: the verdict reached for a fingerprint
// under a given prompt version.
type Entry struct {
	Fingerprint   string
	Verdict       verdict.Verdict
	PromptVersion string
	CreatedAt     time.Time
}

// Store is the persistent fingerprint-to-verdict cache. Entries are write-once:
// a Put for an existing fingerprint with the same verdict is a no-op, a Put
// with a diverging verdict keeps the original and reports the inconsistency to
// the log, never overwrites.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	Close() error
}
