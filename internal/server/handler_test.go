package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lucent/lexical-diversity/internal/corpus"
	"github.com/Lucent/lexical-diversity/internal/leaderboard"
	"github.com/Lucent/lexical-diversity/internal/mtld"
	"github.com/Lucent/lexical-diversity/internal/queue"
	"github.com/Lucent/lexical-diversity/internal/store"
	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
	"github.com/Lucent/lexical-diversity/pkg/health"
)

// fakeFetcher serves canned post sets per account.
type fakeFetcher struct {
	corpora map[string][]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, account string) (*corpus.Corpus, error) {
	posts, ok := f.corpora[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, account)
	}
	return &corpus.Corpus{Account: account, Posts: posts}, nil
}

// fakeLemmatizer splits text into whitespace tokens.
type fakeLemmatizer struct{}

func (fakeLemmatizer) Lemmatize(ctx context.Context, text string) ([]string, error) {
	return strings.Fields(text), nil
}

// alicePosts is a 60-post corpus yielding well over 100 lemma tokens.
func alicePosts() []string {
	posts := make([]string, 60)
	for i := range posts {
		posts[i] = fmt.Sprintf("thought number %d about language diversity and the word w%d", i, i%23)
	}
	return posts
}

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
	scorer *mtld.Scorer
}

func newTestEnv(t *testing.T, corpora map[string][]string) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	scorer := mtld.New(mtld.DefaultThreshold)
	q := queue.New(queue.Options{
		Workers:          2,
		Capacity:         16,
		JobTimeout:       5 * time.Second,
		Retention:        time.Hour,
		MinPosts:         50,
		MinTokens:        100,
		FetchMaxAttempts: 1,
	}, queue.Deps{
		Fetcher:    &fakeFetcher{corpora: corpora},
		Lemmatizer: fakeLemmatizer{},
		Scorer:     scorer,
		Store:      st,
	})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		q.Close()
	})

	board := leaderboard.New(st, nil, config.RedisConfig{}, nil)
	h := New(q, st, board, config.LeaderboardConfig{DefaultLimit: 50, MaxLimit: 200})
	srv := httptest.NewServer(NewRouter(h, health.NewChecker(), nil, 5*time.Second))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: st, scorer: scorer}
}

func (e *testEnv) analyze(t *testing.T, account string) (*http.Response, queue.Job) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"account": account})
	resp, err := http.Post(e.server.URL+"/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("analyze request: %v", err)
	}
	defer resp.Body.Close()
	var job queue.Job
	json.NewDecoder(resp.Body).Decode(&job)
	return resp, job
}

func (e *testEnv) pollTerminal(t *testing.T, account string) queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(e.server.URL + "/status/" + account)
		if err != nil {
			t.Fatalf("status request: %v", err)
		}
		var job queue.Job
		json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK && job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job for %s did not finish", account)
	return queue.Job{}
}

func TestAnalyzeScoreRoundTrip(t *testing.T) {
	posts := alicePosts()
	env := newTestEnv(t, map[string][]string{"alice.example": posts})

	resp, job := env.analyze(t, "alice.example")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if job.State != queue.StateQueued {
		t.Errorf("expected QUEUED, got %s", job.State)
	}

	done := env.pollTerminal(t, "alice.example")
	if done.State != queue.StateSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", done.State, done.ErrorDetail)
	}

	scoreResp, err := http.Get(env.server.URL + "/score/alice.example")
	if err != nil {
		t.Fatalf("score request: %v", err)
	}
	defer scoreResp.Body.Close()
	if scoreResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", scoreResp.StatusCode)
	}
	var rec store.Score
	json.NewDecoder(scoreResp.Body).Decode(&rec)

	// The served score must match the reference computation on the same
	// lemma sequence.
	c := &corpus.Corpus{Account: "alice.example", Posts: posts}
	tokens, _ := fakeLemmatizer{}.Lemmatize(context.Background(), c.Text())
	want, err := env.scorer.Score(tokens)
	if err != nil {
		t.Fatalf("reference score: %v", err)
	}
	if math.Abs(rec.Score-want) > 1e-6 {
		t.Errorf("expected score %g, got %g", want, rec.Score)
	}
	if rec.TokenCount != len(tokens) {
		t.Errorf("expected token count %d, got %d", len(tokens), rec.TokenCount)
	}
	if rec.Fingerprint != c.Fingerprint() {
		t.Errorf("expected fingerprint %s, got %s", c.Fingerprint(), rec.Fingerprint)
	}
}

func TestAnalyzeDeduplicatesPendingJob(t *testing.T) {
	env := newTestEnv(t, map[string][]string{"alice.example": alicePosts()})

	first, firstJob := env.analyze(t, "alice.example")
	second, secondJob := env.analyze(t, "alice.example")

	// The second submit either found the first job pending (200) or the
	// first had already finished; only the pending case dedups.
	if second.StatusCode == http.StatusOK && secondJob.ID != firstJob.ID {
		t.Errorf("deduplicated submit returned a different job: %s vs %s", secondJob.ID, firstJob.ID)
	}
	if first.StatusCode != http.StatusAccepted {
		t.Errorf("first submit should answer 202, got %d", first.StatusCode)
	}
	env.pollTerminal(t, "alice.example")
}

func TestInsufficientDataEndToEnd(t *testing.T) {
	tenPosts := make([]string, 10)
	for i := range tenPosts {
		tenPosts[i] = fmt.Sprintf("short post %d", i)
	}
	env := newTestEnv(t, map[string][]string{"newuser.example": tenPosts})

	resp, _ := env.analyze(t, "newuser.example")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	done := env.pollTerminal(t, "newuser.example")
	if done.State != queue.StateFailed {
		t.Fatalf("expected FAILED, got %s", done.State)
	}
	if done.ErrorKind != apperrors.KindInsufficientData {
		t.Errorf("expected %s, got %s", apperrors.KindInsufficientData, done.ErrorKind)
	}

	scoreResp, err := http.Get(env.server.URL + "/score/newuser.example")
	if err != nil {
		t.Fatalf("score request: %v", err)
	}
	scoreResp.Body.Close()
	if scoreResp.StatusCode != http.StatusNotFound {
		t.Errorf("failed job must leave no score, got %d", scoreResp.StatusCode)
	}
}

func TestAccountNotFoundEndToEnd(t *testing.T) {
	env := newTestEnv(t, map[string][]string{})

	env.analyze(t, "ghost.example")
	done := env.pollTerminal(t, "ghost.example")
	if done.ErrorKind != apperrors.KindAccountNotFound {
		t.Errorf("expected %s, got %s", apperrors.KindAccountNotFound, done.ErrorKind)
	}
}

func TestStatusUnknownAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/status/nobody.example")
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAnalyzeRejectsInvalidHandles(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, bad := range []string{"", "has space", "semi;colon", ".leadingdot", strings.Repeat("a", 300)} {
		body, _ := json.Marshal(map[string]string{"account": bad})
		resp, err := http.Post(env.server.URL+"/analyze", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("analyze request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("handle %q: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	env.store.Put(ctx, &store.Score{Account: "a", Fingerprint: "f", Score: 80.0, ComputedAt: base})
	env.store.Put(ctx, &store.Score{Account: "b", Fingerprint: "f", Score: 95.2, ComputedAt: base})
	env.store.Put(ctx, &store.Score{Account: "c", Fingerprint: "f", Score: 95.2, ComputedAt: base.Add(time.Minute)})

	resp, err := http.Get(env.server.URL + "/leaderboard?limit=10")
	if err != nil {
		t.Fatalf("leaderboard request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Entries []leaderboard.Entry `json:"entries"`
		Count   int                 `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Count != 3 {
		t.Fatalf("expected 3 entries, got %d", out.Count)
	}
	want := []string{"b", "c", "a"}
	for i, acct := range want {
		if out.Entries[i].Account != acct {
			t.Errorf("rank %d: expected %s, got %s", i+1, acct, out.Entries[i].Account)
		}
	}
}

func TestLeaderboardRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, bad := range []string{"0", "-5", "abc"} {
		resp, err := http.Get(env.server.URL + "/leaderboard?limit=" + bad)
		if err != nil {
			t.Fatalf("leaderboard request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.store.Put(ctx, &store.Score{Account: "alice.example", Fingerprint: "f", Score: 70, ComputedAt: time.Now().UTC()})

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/accounts/alice.example", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	scoreResp, _ := http.Get(env.server.URL + "/score/alice.example")
	scoreResp.Body.Close()
	if scoreResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", scoreResp.StatusCode)
	}

	again, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second delete request: %v", err)
	}
	again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 deleting unknown account, got %d", again.StatusCode)
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/health/live")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
