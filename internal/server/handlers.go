package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/quantdesk/backtesting-backend/internal/auth"
	"github.com/quantdesk/backtesting-backend/internal/backtest"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/metrics"
	"github.com/quantdesk/backtesting-backend/internal/model"
)

type BacktestEngine interface {
	Run(ctx context.Context, req model.StrategyRequest) ([]model.Trade, error)
}

type ResultsStore interface {
	ReplaceFiltered(ctx context.Context, trades []model.Trade) error
	SaveUserResults(ctx context.Context, googleID string, req model.StrategyRequest, trades []model.Trade) (string, error)
	GetUserResults(ctx context.Context, googleID string) ([]model.UserBacktestResult, error)
	GetProfitCurve(ctx context.Context) ([]model.ProfitPoint, error)
	GetStats(ctx context.Context) (model.TradeStats, error)
}

type CandleStore interface {
	GetCandles(ctx context.Context, symbol, interval string) ([]model.Candle, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	engine  BacktestEngine
	results ResultsStore
	candles CandleStore
	db      Pinger

	logger logger.Logger
}

func NewHandlers(engine BacktestEngine, results ResultsStore, candles CandleStore, db Pinger, logger logger.Logger) *Handlers {
	return &Handlers{
		engine:  engine,
		results: results,
		candles: candles,
		db:      db,
		logger:  logger,
	}
}

type saveStrategyResponse struct {
	Message         string  `json:"message"`
	Rows            int     `json:"rows,omitempty"`
	TotalProfitRate float64 `json:"total_profit_rate,omitempty"`
	RunID           string  `json:"run_id,omitempty"`
}

// SaveStrategy runs the backtest and replaces the latest-run table.
// Authenticated runs are also recorded under the caller's history.
func (h *Handlers) SaveStrategy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "can't read request body")
		return
	}

	var req model.StrategyRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	trades, err := h.engine.Run(r.Context(), req)
	if err != nil {
		var validationErr *backtest.ValidationError
		if errors.As(err, &validationErr) {
			metrics.RecordBacktestRun("invalid", time.Since(start))
			writeError(w, h.logger, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.Errorf("%s: strategy execution failed", err)
		metrics.RecordBacktestRun("error", time.Since(start))
		writeError(w, h.logger, http.StatusInternalServerError, "strategy execution failed")
		return
	}
	metrics.RecordBacktestRun("ok", time.Since(start))

	if err := h.results.ReplaceFiltered(r.Context(), trades); err != nil {
		h.logger.Errorf("%s: can't save filtered results", err)
		writeError(w, h.logger, http.StatusInternalServerError, "can't save results")
		return
	}

	var runID string
	if gid := auth.GoogleID(r.Context()); gid != "" {
		runID, err = h.results.SaveUserResults(r.Context(), gid, req, trades)
		if err != nil {
			h.logger.Errorf("%s: can't save user results", err)
			writeError(w, h.logger, http.StatusInternalServerError, "can't save results")
			return
		}
	}

	if len(trades) == 0 {
		writeJSON(w, h.logger, http.StatusOK, saveStrategyResponse{
			Message: "strategy executed, no results",
		})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, saveStrategyResponse{
		Message:         "strategy executed and results saved",
		Rows:            len(trades),
		TotalProfitRate: trades[len(trades)-1].CumProfitRate,
		RunID:           runID,
	})
}

// GetFiltered serves the run history: everything for anonymous callers,
// the caller's rows when a token was presented.
func (h *Handlers) GetFiltered(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.GetUserResults(r.Context(), auth.GoogleID(r.Context()))
	if err != nil {
		h.logger.Errorf("%s: can't query backtest results", err)
		writeError(w, h.logger, http.StatusInternalServerError, "can't query results")
		return
	}
	if results == nil {
		results = []model.UserBacktestResult{}
	}
	writeJSON(w, h.logger, http.StatusOK, results)
}

func (h *Handlers) GetOHLCV(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol, interval := vars["symbol"], vars["interval"]

	if !model.ValidInterval(interval) {
		writeError(w, h.logger, http.StatusBadRequest, "unsupported interval")
		return
	}

	candles, err := h.candles.GetCandles(r.Context(), symbol, interval)
	if err != nil {
		h.logger.Errorf("%s: can't query candles", err)
		writeError(w, h.logger, http.StatusInternalServerError, "can't query candles")
		return
	}
	if candles == nil {
		candles = []model.Candle{}
	}
	writeJSON(w, h.logger, http.StatusOK, candles)
}

func (h *Handlers) GetProfitRate(w http.ResponseWriter, r *http.Request) {
	points, err := h.results.GetProfitCurve(r.Context())
	if err != nil {
		h.logger.Errorf("%s: can't query profit curve", err)
		writeError(w, h.logger, http.StatusInternalServerError, "can't query profit curve")
		return
	}
	if points == nil {
		points = []model.ProfitPoint{}
	}
	writeJSON(w, h.logger, http.StatusOK, points)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.results.GetStats(r.Context())
	if err != nil {
		h.logger.Errorf("%s: can't compute stats", err)
		writeError(w, h.logger, http.StatusInternalServerError, "can't compute stats")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
