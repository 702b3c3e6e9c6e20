package server

import (
	"net/http"
	"time"

	"github.com/Lucent/lexical-diversity/pkg/health"
	"github.com/Lucent/lexical-diversity/pkg/metrics"
	"github.com/Lucent/lexical-diversity/pkg/middleware"
)

// NewRouter wires all routes and applies the middleware chain
// (RequestID → Metrics → Timeout).
//
// Route table:
//
//	POST   /analyze             → enqueue scoring job
//	GET    /status/{account}    → job state
//	GET    /score/{account}     → latest committed score
//	GET    /leaderboard         → ranked accounts
//	DELETE /accounts/{account}  → drop cached scores (admin)
//	GET    /health/live         → liveness
//	GET    /health/ready        → readiness
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analyze", h.Analyze)
	mux.HandleFunc("GET /status/{account}", h.Status)
	mux.HandleFunc("GET /score/{account}", h.Score)
	mux.HandleFunc("GET /leaderboard", h.Leaderboard)
	mux.HandleFunc("DELETE /accounts/{account}", h.DeleteAccount)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = middleware.Timeout(requestTimeout)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
