// Package lemma defines the lemmatization collaborator. The NLP model runs
// as a sidecar service; this package is only the client for it.
package lemma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

// Lemmatizer turns raw text into an ordered sequence of normalized lemma
// tokens.
type Lemmatizer interface {
	Lemmatize(ctx context.Context, text string) ([]string, error)
}

// HTTPLemmatizer calls a lemmatizer sidecar over HTTP. Connection failures
// and non-2xx responses are reported as a fatal model-unavailable condition;
// the sidecar either works or the deployment is misconfigured.
type HTTPLemmatizer struct {
	url       string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPLemmatizer builds the sidecar client from config.
func NewHTTPLemmatizer(cfg config.LemmaConfig) *HTTPLemmatizer {
	return &HTTPLemmatizer{
		url:       cfg.URL,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    slog.Default().With("component", "lemmatizer"),
	}
}

type lemmatizeRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type lemmatizeResponse struct {
	Tokens []string `json:"tokens"`
}

// Lemmatize posts the text to the sidecar and returns the ordered lemma
// tokens, truncated to the configured cap.
func (l *HTTPLemmatizer) Lemmatize(ctx context.Context, text string) ([]string, error) {
	body, err := json.Marshal(lemmatizeRequest{Text: text, MaxTokens: l.maxTokens})
	if err != nil {
		return nil, fmt.Errorf("marshaling lemmatize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building lemmatize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: lemmatize: %v", apperrors.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		l.logger.Error("lemmatizer sidecar error",
			"status", resp.StatusCode,
			"detail", string(detail),
		)
		return nil, fmt.Errorf("%w: sidecar returned %d", apperrors.ErrModelUnavailable, resp.StatusCode)
	}

	var out lemmatizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding sidecar response: %v", apperrors.ErrModelUnavailable, err)
	}
	tokens := out.Tokens
	if l.maxTokens > 0 && len(tokens) > l.maxTokens {
		tokens = tokens[:l.maxTokens]
	}
	return tokens, nil
}

// Ping checks sidecar reachability for readiness probes.
func (l *HTTPLemmatizer) Ping(ctx context.Context) error {
	_, err := l.Lemmatize(ctx, "ping")
	return err
}
