package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

func record(account, fp string, score float64, at time.Time) *Score {
	return &Score{
		Account:     account,
		Fingerprint: fp,
		Score:       score,
		TokenCount:  500,
		VocabSize:   120,
		TTR:         0.24,
		HapaxRatio:  0.4,
		ComputedAt:  at,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	if err := m.Put(ctx, record("alice", "fp1", 71.5, now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.Get(ctx, "alice", "fp1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 71.5 || got.Fingerprint != "fp1" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.Get(context.Background(), "alice", "fp1")
	if !errors.Is(err, apperrors.ErrScoreNotFound) {
		t.Errorf("expected ErrScoreNotFound, got %v", err)
	}
}

// Re-putting the same snapshot key must not alter the stored record.
func TestPutIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	if err := m.Put(ctx, record("alice", "fp1", 71.5, now)); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := m.Put(ctx, record("alice", "fp1", 99.9, now.Add(time.Hour))); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := m.Get(ctx, "alice", "fp1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 71.5 {
		t.Errorf("duplicate put overwrote record: score %g", got.Score)
	}
}

func TestLatestPicksNewestFingerprint(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Now().UTC()

	m.Put(ctx, record("alice", "fp-old", 60, base))
	m.Put(ctx, record("alice", "fp-new", 75, base.Add(time.Minute)))

	got, err := m.Latest(ctx, "alice")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Fingerprint != "fp-new" {
		t.Errorf("expected fp-new, got %s", got.Fingerprint)
	}
}

func TestLatestAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Now().UTC()

	m.Put(ctx, record("alice", "fp1", 60, base))
	m.Put(ctx, record("alice", "fp2", 65, base.Add(time.Minute)))
	m.Put(ctx, record("bob", "fp1", 80, base))

	all, err := m.LatestAll(ctx)
	if err != nil {
		t.Fatalf("latestAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(all))
	}
	for _, rec := range all {
		if rec.Account == "alice" && rec.Fingerprint != "fp2" {
			t.Errorf("alice latest should be fp2, got %s", rec.Fingerprint)
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Put(ctx, record("alice", "fp1", 60, time.Now().UTC()))

	if err := m.Delete(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Latest(ctx, "alice"); !errors.Is(err, apperrors.ErrScoreNotFound) {
		t.Errorf("expected ErrScoreNotFound after delete, got %v", err)
	}
	if err := m.Delete(ctx, "alice"); !errors.Is(err, apperrors.ErrScoreNotFound) {
		t.Errorf("expected ErrScoreNotFound for unknown account, got %v", err)
	}
}

// Mutating a returned record must not reach the stored copy.
func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Put(ctx, record("alice", "fp1", 60, time.Now().UTC()))

	got, _ := m.Get(ctx, "alice", "fp1")
	got.Score = 0

	again, _ := m.Get(ctx, "alice", "fp1")
	if again.Score != 60 {
		t.Errorf("stored record was mutated through the returned pointer")
	}
}

func TestConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct := fmt.Sprintf("user%d", i%5)
			fp := fmt.Sprintf("fp%d", i)
			if err := m.Put(ctx, record(acct, fp, float64(i), now.Add(time.Duration(i)*time.Second))); err != nil {
				t.Errorf("put: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, err := m.LatestAll(ctx)
	if err != nil {
		t.Fatalf("latestAll: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 accounts, got %d", len(all))
	}
}
