package store

import (
	"context"
	"sync"

	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// deployments that do not need durability across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*Score // account → fingerprint → record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]*Score),
	}
}

// Get returns the record for the exact snapshot key.
func (m *MemoryStore) Get(ctx context.Context, account, fingerprint string) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[account][fingerprint]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, apperrors.ErrScoreNotFound
}

// Put commits a record; an existing (account, fingerprint) key is left
// untouched.
func (m *MemoryStore) Put(ctx context.Context, score *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byFP, ok := m.records[score.Account]
	if !ok {
		byFP = make(map[string]*Score)
		m.records[score.Account] = byFP
	}
	if _, exists := byFP[score.Fingerprint]; exists {
		return nil
	}
	cp := *score
	byFP[score.Fingerprint] = &cp
	return nil
}

// Latest returns the most recently computed record for the account.
func (m *MemoryStore) Latest(ctx context.Context, account string) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Score
	for _, rec := range m.records[account] {
		if latest == nil || rec.ComputedAt.After(latest.ComputedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, apperrors.ErrScoreNotFound
	}
	cp := *latest
	return &cp, nil
}

// LatestAll returns the latest record of every scored account.
func (m *MemoryStore) LatestAll(ctx context.Context) ([]*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Score, 0, len(m.records))
	for _, byFP := range m.records {
		var latest *Score
		for _, rec := range byFP {
			if latest == nil || rec.ComputedAt.After(latest.ComputedAt) {
				latest = rec
			}
		}
		if latest != nil {
			cp := *latest
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Delete removes all records for an account.
func (m *MemoryStore) Delete(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[account]; !ok {
		return apperrors.ErrScoreNotFound
	}
	delete(m.records, account)
	return nil
}
