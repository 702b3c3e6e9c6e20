// Package fetch defines the corpus-fetch collaborator and its external
// process implementation. The fetch program owns repository export, unpack,
// and identity resolution; this package only invokes it and classifies its
// failure modes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Lucent/lexical-diversity/internal/corpus"
	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

// Fetcher retrieves an account's post corpus.
type Fetcher interface {
	Fetch(ctx context.Context, account string) (*corpus.Corpus, error)
}

// Exit code contract of the fetch program.
const (
	exitAccountNotFound = 2
)

// ScriptFetcher shells out to an external fetch program that writes the
// account's posts to <dumpDir>/<account>.txt, one post per blank-line
// separated block.
type ScriptFetcher struct {
	script    string
	dumpDir   string
	postLimit int
	logger    *slog.Logger
}

// NewScriptFetcher builds a ScriptFetcher from config.
func NewScriptFetcher(cfg config.FetchConfig) *ScriptFetcher {
	return &ScriptFetcher{
		script:    cfg.Script,
		dumpDir:   cfg.DumpDir,
		postLimit: cfg.PostLimit,
		logger:    slog.Default().With("component", "script-fetcher"),
	}
}

// Fetch runs the external program under ctx. When ctx expires the process
// is killed by exec and the error is reported as a timeout.
func (f *ScriptFetcher) Fetch(ctx context.Context, account string) (*corpus.Corpus, error) {
	cmd := exec.CommandContext(ctx, f.script, account, strconv.Itoa(f.postLimit))
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: fetch of %s: %v", apperrors.ErrTimeout, account, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == exitAccountNotFound {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, account)
		}
		f.logger.Error("fetch program failed",
			"account", account,
			"error", err,
			"output", strings.TrimSpace(string(output)),
		)
		return nil, fmt.Errorf("%w: fetch program for %s: %v", apperrors.ErrFetchFailed, account, err)
	}

	posts, err := readDump(filepath.Join(f.dumpDir, account+".txt"), f.postLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: reading dump for %s: %v", apperrors.ErrFetchFailed, account, err)
	}
	f.logger.Info("corpus fetched", "account", account, "posts", len(posts))
	return &corpus.Corpus{Account: account, Posts: posts}, nil
}

// readDump parses a dump file into posts. Posts are separated by blank
// lines; a post may span multiple lines.
func readDump(path string, limit int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var posts []string
	for _, block := range strings.Split(string(data), "\n\n") {
		post := strings.TrimSpace(block)
		if post == "" {
			continue
		}
		posts = append(posts, post)
		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts, nil
}
