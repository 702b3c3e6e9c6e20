package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
	"github.com/Lucent/lexical-diversity/pkg/postgres"
)

// PostgresStore is the durable Store implementation. The primary key
// (account, fingerprint) plus ON CONFLICT DO NOTHING gives idempotent,
// atomic per-snapshot writes.
type PostgresStore struct {
	db *postgres.Client
}

// NewPostgresStore wraps the shared connection pool.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the scores table when it does not exist yet.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS mtld_scores (
			account      TEXT             NOT NULL,
			fingerprint  TEXT             NOT NULL,
			score        DOUBLE PRECISION NOT NULL,
			token_count  INTEGER          NOT NULL,
			vocab_size   INTEGER          NOT NULL,
			ttr          DOUBLE PRECISION NOT NULL,
			hapax_ratio  DOUBLE PRECISION NOT NULL,
			computed_at  TIMESTAMPTZ      NOT NULL,
			PRIMARY KEY (account, fingerprint)
		)`)
	if err != nil {
		return fmt.Errorf("creating mtld_scores table: %w", err)
	}
	return nil
}

const scoreColumns = `account, fingerprint, score, token_count, vocab_size, ttr, hapax_ratio, computed_at`

// Get returns the record for the exact snapshot key.
func (p *PostgresStore) Get(ctx context.Context, account, fingerprint string) (*Score, error) {
	row := p.db.DB.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM mtld_scores WHERE account = $1 AND fingerprint = $2`,
		account, fingerprint,
	)
	return scanScore(row)
}

// Put commits a record; a duplicate key is a no-op.
func (p *PostgresStore) Put(ctx context.Context, score *Score) error {
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO mtld_scores (`+scoreColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (account, fingerprint) DO NOTHING`,
		score.Account, score.Fingerprint, score.Score, score.TokenCount,
		score.VocabSize, score.TTR, score.HapaxRatio, score.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting score for %s: %w", score.Account, err)
	}
	return nil
}

// Latest returns the most recently computed record for the account.
func (p *PostgresStore) Latest(ctx context.Context, account string) (*Score, error) {
	row := p.db.DB.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM mtld_scores
		 WHERE account = $1 ORDER BY computed_at DESC LIMIT 1`,
		account,
	)
	return scanScore(row)
}

// LatestAll returns the latest record of every scored account.
func (p *PostgresStore) LatestAll(ctx context.Context) ([]*Score, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT DISTINCT ON (account) `+scoreColumns+`
		 FROM mtld_scores ORDER BY account, computed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest scores: %w", err)
	}
	defer rows.Close()

	var out []*Score
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.Account, &s.Fingerprint, &s.Score, &s.TokenCount,
			&s.VocabSize, &s.TTR, &s.HapaxRatio, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scanning score row: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Delete removes all records for an account.
func (p *PostgresStore) Delete(ctx context.Context, account string) error {
	res, err := p.db.DB.ExecContext(ctx,
		`DELETE FROM mtld_scores WHERE account = $1`, account)
	if err != nil {
		return fmt.Errorf("deleting scores for %s: %w", account, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrScoreNotFound
	}
	return nil
}

// Ping verifies database reachability for readiness probes.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.DB.PingContext(ctx)
}

func scanScore(row *sql.Row) (*Score, error) {
	var s Score
	err := row.Scan(&s.Account, &s.Fingerprint, &s.Score, &s.TokenCount,
		&s.VocabSize, &s.TTR, &s.HapaxRatio, &s.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning score: %w", err)
	}
	return &s, nil
}
