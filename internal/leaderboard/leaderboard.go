// Package leaderboard is the read-only ranked projection over the snapshot
// cache. Ranking is recomputed from committed records at read time; an
// optional Redis cache absorbs repeated reads, with singleflight collapsing
// concurrent recomputes.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Lucent/lexical-diversity/internal/store"
	"github.com/Lucent/lexical-diversity/pkg/config"
	"github.com/Lucent/lexical-diversity/pkg/metrics"
	pkgredis "github.com/Lucent/lexical-diversity/pkg/redis"
)

const keyPrefix = "leaderboard:"

// Entry is one ranked row.
type Entry struct {
	Rank       int       `json:"rank"`
	Account    string    `json:"account"`
	Score      float64   `json:"score"`
	TokenCount int       `json:"token_count"`
	ComputedAt time.Time `json:"computed_at"`
}

// Board serves ranked reads. A nil redis client disables caching.
type Board struct {
	store   store.Store
	cache   *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Board over the given snapshot store.
func New(st store.Store, cache *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *Board {
	return &Board{
		store:   st,
		cache:   cache,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "leaderboard"),
	}
}

// Top returns the n highest-scoring accounts. Scores sort descending; ties
// rank the earlier-computed record first, then by account so the order is
// total and deterministic.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if b.cache == nil {
		return b.compute(ctx, n)
	}

	key := fmt.Sprintf("%stop=%d", keyPrefix, n)
	if data, err := b.cache.Get(ctx, key); err == nil {
		var entries []Entry
		if err := json.Unmarshal([]byte(data), &entries); err == nil {
			if b.metrics != nil {
				b.metrics.LeaderboardCacheHits.Inc()
			}
			return entries, nil
		}
		b.logger.Error("cache unmarshal failed", "key", key, "error", err)
	} else if !pkgredis.IsNilError(err) {
		b.logger.Error("cache get failed", "key", key, "error", err)
	}
	if b.metrics != nil {
		b.metrics.LeaderboardCacheMiss.Inc()
	}

	val, err, _ := b.group.Do(key, func() (interface{}, error) {
		entries, err := b.compute(ctx, n)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(entries); err == nil {
			if err := b.cache.Set(ctx, key, data, b.ttl); err != nil {
				b.logger.Error("cache set failed", "key", key, "error", err)
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]Entry), nil
}

// Invalidate drops all cached rankings, e.g. after an admin delete.
func (b *Board) Invalidate(ctx context.Context) {
	if b.cache == nil {
		return
	}
	deleted, err := b.cache.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		b.logger.Error("cache invalidate failed", "error", err)
		return
	}
	b.logger.Info("leaderboard cache invalidated", "keys_deleted", deleted)
}

func (b *Board) compute(ctx context.Context, n int) ([]Entry, error) {
	records, err := b.store.LatestAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading latest scores: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if !records[i].ComputedAt.Equal(records[j].ComputedAt) {
			return records[i].ComputedAt.Before(records[j].ComputedAt)
		}
		return records[i].Account < records[j].Account
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}

	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = Entry{
			Rank:       i + 1,
			Account:    rec.Account,
			Score:      rec.Score,
			TokenCount: rec.TokenCount,
			ComputedAt: rec.ComputedAt,
		}
	}
	return entries, nil
}
