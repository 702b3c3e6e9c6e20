package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fetch.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestFetchReadsDump(t *testing.T) {
	dumpDir := t.TempDir()
	dump := "first post\nstill first\n\nsecond post\n\n\nthird post\n"
	if err := os.WriteFile(filepath.Join(dumpDir, "alice.txt"), []byte(dump), 0o644); err != nil {
		t.Fatalf("writing dump: %v", err)
	}

	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "exit 0"),
		DumpDir:   dumpDir,
		PostLimit: 500,
	})
	c, err := f.Fetch(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d: %v", len(c.Posts), c.Posts)
	}
	if c.Posts[0] != "first post\nstill first" {
		t.Errorf("unexpected first post: %q", c.Posts[0])
	}
}

func TestFetchPostLimit(t *testing.T) {
	dumpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dumpDir, "a.txt"), []byte("p1\n\np2\n\np3\n"), 0o644); err != nil {
		t.Fatalf("writing dump: %v", err)
	}
	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "exit 0"),
		DumpDir:   dumpDir,
		PostLimit: 2,
	})
	c, err := f.Fetch(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Posts) != 2 {
		t.Errorf("expected post limit 2 applied, got %d posts", len(c.Posts))
	}
}

func TestFetchAccountNotFound(t *testing.T) {
	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "exit 2"),
		DumpDir:   t.TempDir(),
		PostLimit: 500,
	})
	_, err := f.Fetch(context.Background(), "nobody")
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestFetchTransientFailure(t *testing.T) {
	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "exit 1"),
		DumpDir:   t.TempDir(),
		PostLimit: 500,
	})
	_, err := f.Fetch(context.Background(), "alice")
	if !errors.Is(err, apperrors.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchMissingDumpIsTransient(t *testing.T) {
	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "exit 0"),
		DumpDir:   t.TempDir(),
		PostLimit: 500,
	})
	_, err := f.Fetch(context.Background(), "alice")
	if !errors.Is(err, apperrors.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchTimeoutKillsProcess(t *testing.T) {
	f := NewScriptFetcher(config.FetchConfig{
		Script:    writeScript(t, "sleep 10"),
		DumpDir:   t.TempDir(),
		PostLimit: 500,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, "alice")
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("fetch did not terminate with the context, took %v", elapsed)
	}
}
