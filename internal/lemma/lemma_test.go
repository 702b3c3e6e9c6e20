package lemma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
)

func TestLemmatizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req lemmatizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Text != "the cats ran" {
			t.Errorf("unexpected text: %q", req.Text)
		}
		json.NewEncoder(w).Encode(lemmatizeResponse{Tokens: []string{"the_DET", "cat_NOUN", "run_VERB"}})
	}))
	defer srv.Close()

	l := NewHTTPLemmatizer(config.LemmaConfig{URL: srv.URL, Timeout: time.Second, MaxTokens: 100})
	tokens, err := l.Lemmatize(context.Background(), "the cats ran")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 3 || tokens[1] != "cat_NOUN" {
		t.Errorf("unexpected tokens: %v", tokens)
	}
}

func TestLemmatizeTokenCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(lemmatizeResponse{Tokens: []string{"a", "b", "c", "d"}})
	}))
	defer srv.Close()

	l := NewHTTPLemmatizer(config.LemmaConfig{URL: srv.URL, Timeout: time.Second, MaxTokens: 2})
	tokens, err := l.Lemmatize(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("expected token cap 2 applied, got %d", len(tokens))
	}
}

func TestLemmatizeSidecarDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	l := NewHTTPLemmatizer(config.LemmaConfig{URL: srv.URL, Timeout: time.Second})
	_, err := l.Lemmatize(context.Background(), "text")
	if !errors.Is(err, apperrors.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestLemmatizeSidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := NewHTTPLemmatizer(config.LemmaConfig{URL: srv.URL, Timeout: time.Second})
	_, err := l.Lemmatize(context.Background(), "text")
	if !errors.Is(err, apperrors.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}
