package server

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/quantdesk/backtesting-backend/internal/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		log.Errorf("%s: can't encode response", err)
		http.Error(w, `{"detail":"encoding failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Warnf("%s: can't write response", err)
	}
}

func writeError(w http.ResponseWriter, log logger.Logger, status int, detail string) {
	writeJSON(w, log, status, errorResponse{Detail: detail})
}
