package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/klines"
)

// PriceSource provides OHLC candles.
type PriceSource interface {
	History(ctx context.Context, symbol, interval string) ([]klines.Candle, error)
}

// PriceHistoryHandler handles GET /api/price/history.
type PriceHistoryHandler struct {
	source PriceSource
	logger *slog.Logger
}

// NewPriceHistoryHandler creates a price history handler.
func NewPriceHistoryHandler(source PriceSource, logger *slog.Logger) *PriceHistoryHandler {
	return &PriceHistoryHandler{
		source: source,
		logger: logger.With("handler", "price_history"),
	}
}

// ServeHTTP handles the price history request.
func (h *PriceHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = "btcusdt"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1m"
	}

	candles, err := h.source.History(r.Context(), symbol, interval)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, candles)
	case errors.Is(err, klines.ErrBadInterval), errors.Is(err, klines.ErrUnsupportedInterval):
		writeError(w, h.logger, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, klines.ErrUpstream):
		h.logger.Warn("klines_fetch_failed", "symbol", symbol, "interval", interval, "error", err)
		writeError(w, h.logger, http.StatusBadGateway, klines.ErrUpstream.Error(), err.Error())
	default:
		h.logger.Error("price_history_failed", "symbol", symbol, "interval", interval, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
