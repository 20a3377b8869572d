package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"planets-service/internal/events"
	"planets-service/internal/planet"
	sharederrors "planets-service/internal/shared/errors"
	"planets-service/internal/shared/response"
)

// SubscribeHandler streams newly created planets over Server-Sent Events.
// Each connection gets its own broker subscription scoped to the
// connection's lifetime; there is no replay of earlier events.
type SubscribeHandler struct {
	broker *events.Broker[planet.Planet]
}

func NewSubscribeHandler(broker *events.Broker[planet.Planet]) *SubscribeHandler {
	return &SubscribeHandler{broker: broker}
}

func (h *SubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "latest_planet", "remote_addr", r.RemoteAddr)

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, sharederrors.MethodNotAllowed(r.Method))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, r, logger, sharederrors.WrapInternal("streaming unsupported", fmt.Errorf("response writer is not a flusher")))
		return
	}

	sub := h.broker.Subscribe()
	defer sub.Close()

	// The stream lives for the connection's lifetime, which outlasts the
	// server's write timeout; clear the per-connection deadline so events
	// published after it still reach the subscriber.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("Failed to clear write deadline on subscription stream", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Debug("Subscription stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Subscription stream closed by client")
			return
		case created, open := <-sub.Events():
			if !open {
				logger.Debug("Subscription stream closed by broker shutdown")
				return
			}

			payload, err := json.Marshal(planetPayload(created))
			if err != nil {
				logger.Error("Failed to marshal planet event", "error", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				logger.Debug("Subscription stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
