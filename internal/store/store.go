// Package store is the snapshot cache: the durable mapping from
// (account, corpus fingerprint) to a computed diversity score. Records are
// immutable once written; a new snapshot produces a new record.
package store

import (
	"context"
	"time"

	"github.com/Lucent/lexical-diversity/internal/mtld"
)

// Score is one committed scoring result for one corpus snapshot.
type Score struct {
	Account     string    `json:"account"`
	Fingerprint string    `json:"fingerprint"`
	Score       float64   `json:"score"`
	TokenCount  int       `json:"token_count"`
	VocabSize   int       `json:"vocab_size"`
	TTR         float64   `json:"ttr"`
	HapaxRatio  float64   `json:"hapax_ratio"`
	ComputedAt  time.Time `json:"computed_at"`
}

// FromResult builds a Score record from an analyzer result.
func FromResult(account, fingerprint string, res *mtld.Result, at time.Time) *Score {
	return &Score{
		Account:     account,
		Fingerprint: fingerprint,
		Score:       res.Score,
		TokenCount:  res.TokenCount,
		VocabSize:   res.VocabSize,
		TTR:         res.TTR,
		HapaxRatio:  res.HapaxRatio,
		ComputedAt:  at,
	}
}

// Store is the snapshot cache contract. Get never triggers computation; a
// miss is the caller's signal to enqueue a job. Put is idempotent per
// (account, fingerprint) and atomic with respect to concurrent readers.
type Store interface {
	// Get returns the record for the exact snapshot key, or
	// errors.ErrScoreNotFound.
	Get(ctx context.Context, account, fingerprint string) (*Score, error)
	// Put commits a record. Re-putting an existing key is a no-op.
	Put(ctx context.Context, score *Score) error
	// Latest returns the most recently computed record for the account
	// regardless of fingerprint, or errors.ErrScoreNotFound.
	Latest(ctx context.Context, account string) (*Score, error)
	// LatestAll returns the latest record of every scored account, in no
	// particular order.
	LatestAll(ctx context.Context) ([]*Score, error)
	// Delete removes all records for an account. Deleting an unknown
	// account returns errors.ErrScoreNotFound.
	Delete(ctx context.Context, account string) error
}
