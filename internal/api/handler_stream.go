package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aetherlink/commandcenter/internal/fanout"
)

type streamHandler struct {
	hub *fanout.Hub
	log zerolog.Logger
}

// events streams newly published events as server-sent-events frames.
// The connection has no replay: the subscriber only sees events
// published after it connects, matching the fan-out hub's no-history
// guarantee.
func (h *streamHandler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subscriberID := uuid.NewString()
	ch := h.hub.Subscribe(subscriberID)
	defer h.hub.Unsubscribe(subscriberID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				h.log.Debug().Err(err).Str("subscriber_id", subscriberID).Msg("stream write failed, disconnecting")
				return
			}
			flusher.Flush()
		}
	}
}
