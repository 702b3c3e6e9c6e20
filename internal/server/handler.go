// Package server exposes the scoring engine over HTTP: submit an account
// for analysis, poll job status, read scores, and query the leaderboard.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lucent/lexical-diversity/internal/leaderboard"
	"github.com/Lucent/lexical-diversity/internal/queue"
	"github.com/Lucent/lexical-diversity/internal/store"
	"github.com/Lucent/lexical-diversity/pkg/config"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
	"github.com/Lucent/lexical-diversity/pkg/logger"
)

const maxAccountLength = 253

// Handler implements the service's HTTP endpoints.
type Handler struct {
	queue  *queue.Queue
	store  store.Store
	board  *leaderboard.Board
	limits config.LeaderboardConfig
	logger *slog.Logger
}

// New creates a Handler over the queue, snapshot store, and leaderboard.
func New(q *queue.Queue, st store.Store, board *leaderboard.Board, limits config.LeaderboardConfig) *Handler {
	return &Handler{
		queue:  q,
		store:  st,
		board:  board,
		limits: limits,
		logger: slog.Default().With("component", "http-handler"),
	}
}

type analyzeRequest struct {
	Account string `json:"account"`
}

// Analyze enqueues a scoring job for the account. A newly created job
// answers 202; a submit deduplicated onto a pending job answers 200 with
// that job's state.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := normalizeAccount(req.Account)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, created, err := h.queue.Submit(account)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("submit failed", "account", account, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "could not enqueue analysis")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
		log.Info("analysis queued", "account", account, "job_id", job.ID)
	}
	h.writeJSON(w, status, job)
}

// Status returns the state of the account's most recent job.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	account, err := normalizeAccount(r.PathValue("account"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, ok := h.queue.Status(account)
	if !ok {
		h.writeError(w, http.StatusNotFound, "no job for account")
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// Score returns the latest committed score for the account.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	account, err := normalizeAccount(r.PathValue("account"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.store.Latest(r.Context(), account)
	if err != nil {
		if errors.Is(err, apperrors.ErrScoreNotFound) {
			h.writeError(w, http.StatusNotFound, "no score computed yet")
			return
		}
		h.logger.Error("score lookup failed", "account", account, "error", err)
		h.writeError(w, http.StatusInternalServerError, "score lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// Leaderboard returns the ranked accounts.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.limits.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.limits.MaxLimit {
			parsed = h.limits.MaxLimit
		}
		limit = parsed
	}

	entries, err := h.board.Top(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard read failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "leaderboard read failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// DeleteAccount removes all cached scores for an account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := normalizeAccount(r.PathValue("account"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Delete(ctx, account); err != nil {
		if errors.Is(err, apperrors.ErrScoreNotFound) {
			h.writeError(w, http.StatusNotFound, "account has no cached scores")
			return
		}
		h.logger.Error("delete failed", "account", account, "error", err)
		h.writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	h.board.Invalidate(ctx)
	logger.FromContext(ctx).Info("account scores deleted", "account", account)
	h.writeJSON(w, http.StatusOK, map[string]string{"deleted": account})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// normalizeAccount lower-cases and validates a handle. Handles look like
// hostnames: dot-separated labels of letters, digits, and hyphens.
func normalizeAccount(raw string) (string, error) {
	account := strings.ToLower(strings.TrimSpace(raw))
	if account == "" {
		return "", errors.New("account is required")
	}
	if len(account) > maxAccountLength {
		return "", errors.New("account is too long")
	}
	for _, r := range account {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return "", errors.New("account contains invalid characters")
		}
	}
	if strings.HasPrefix(account, ".") || strings.HasSuffix(account, ".") {
		return "", errors.New("account must not start or end with a dot")
	}
	return account, nil
}
