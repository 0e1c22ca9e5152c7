package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore keeps the cache in process memory. Used for cache-disabled runs
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	logger  *zap.Logger
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		logger:  logger,
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fingerprint]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.Fingerprint]; ok {
		if existing.Verdict.Classification != entry.Verdict.Classification {
			s.logger.Warn("cache consistency violation: diverging verdict for existing fingerprint, keeping original",
				zap.String("fingerprint", entry.Fingerprint),
				zap.String("existing", string(existing.Verdict.Classification)),
				zap.String("rejected", string(entry.Verdict.Classification)),
			)
		}
		return nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries[entry.Fingerprint] = entry
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
