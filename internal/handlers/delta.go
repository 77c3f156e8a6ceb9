package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/cache"
	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// DeltaReader is the read side of the delta store.
type DeltaReader interface {
	Latest(ctx context.Context, keys models.Keys) (*cache.Latest, error)
	History(ctx context.Context, keys models.Keys) ([]models.IntervalBar, error)
	Subscribe(ctx context.Context, keys models.Keys, handler cache.BarHandler) error
}

// DeltaHandler serves delta bars. symbol and tf query parameters default to
// the configured instrument.
type DeltaHandler struct {
	reader      DeltaReader
	symbol      string
	intervalSec int64
	keepAlive   time.Duration
	logger      *slog.Logger
}

// NewDeltaHandler creates a delta handler.
func NewDeltaHandler(reader DeltaReader, symbol string, intervalSec int64, logger *slog.Logger) *DeltaHandler {
	return &DeltaHandler{
		reader:      reader,
		symbol:      symbol,
		intervalSec: intervalSec,
		keepAlive:   15 * time.Second,
		logger:      logger.With("handler", "delta"),
	}
}

// Latest handles GET /api/delta/latest.
func (h *DeltaHandler) Latest(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.keys(w, r)
	if !ok {
		return
	}

	latest, err := h.reader.Latest(r.Context(), keys)
	if err != nil {
		h.logger.Error("cache_read_failed", "key", keys.Bar, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "backend_unavailable", "Failed to read from cache")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, latest)
}

// History handles GET /api/delta/history.
func (h *DeltaHandler) History(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.keys(w, r)
	if !ok {
		return
	}

	bars, err := h.reader.History(r.Context(), keys)
	if err != nil {
		h.logger.Error("cache_read_failed", "key", keys.History, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "backend_unavailable", "Failed to read from cache")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, bars)
}

// Stream handles GET /api/delta/stream, relaying closed bars as Server-Sent
// Events until the client disconnects.
func (h *DeltaHandler) Stream(w http.ResponseWriter, r *http.Request) {
	keys, ok := h.keys(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	bars := make(chan *models.BarMessage, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- h.reader.Subscribe(ctx, keys, func(ctx context.Context, msg *models.BarMessage) error {
			select {
			case bars <- msg:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	sse, err := NewSSEWriter(w)
	if err != nil {
		h.logger.Error("sse_init_failed", "error", err, "correlation_id", GetCorrelationID(r.Context()))
		return
	}

	logger := h.logger.With("channel", keys.Channel, "correlation_id", GetCorrelationID(r.Context()))
	logger.Info("stream_opened")
	defer logger.Info("stream_closed")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errc:
			if err != nil && ctx.Err() == nil {
				logger.Warn("stream_subscription_failed", "error", err)
			}
			return
		case msg := <-bars:
			if err := sse.SendEvent(msg); err != nil {
				logger.Debug("stream_write_failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := sse.SendComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func (h *DeltaHandler) keys(w http.ResponseWriter, r *http.Request) (models.Keys, bool) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = h.symbol
	}

	intervalSec := h.intervalSec
	if raw := r.URL.Query().Get("tf"); raw != "" {
		tf, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tf <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_parameter", "tf must be a positive integer")
			return models.Keys{}, false
		}
		intervalSec = tf
	}

	return models.NewKeys(symbol, intervalSec), true
}
