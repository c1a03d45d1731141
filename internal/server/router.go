package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/quantdesk/backtesting-backend/internal/auth"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/metrics"
)

// NewRouter wires routes and middleware. CORS wraps the router itself so
// preflight requests are answered before route matching. A nil verifier
// leaves all requests anonymous.
func NewRouter(h *Handlers, verifier *auth.Verifier, corsOrigins []string, log logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.Use(ObserveMiddleware(log))
	if verifier != nil {
		r.Use(verifier.Middleware)
	}

	r.HandleFunc("/save_strategy", h.SaveStrategy).Methods(http.MethodPost)
	r.HandleFunc("/filtered", h.GetFiltered).Methods(http.MethodGet)
	r.HandleFunc("/ohlcv/{symbol}/{interval}", h.GetOHLCV).Methods(http.MethodGet)
	r.HandleFunc("/filtered-profit-rate", h.GetProfitRate).Methods(http.MethodGet)
	r.HandleFunc("/filtered-tp-sl-rate", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return NewCORSMiddleware(corsOrigins).Handler(r)
}
