package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/songforge/agent-api/internal/api/shared"
	"github.com/songforge/agent-api/internal/notify"
)

// streamEvents serves a channel of progress events as server-sent events
// until the channel closes (task reached a terminal state) or the client
// disconnects. The unsubscribe callback runs on every exit path.
func streamEvents(
	w http.ResponseWriter,
	r *http.Request,
	events <-chan notify.Event,
	unsubscribe func(),
	logger *slog.Logger,
) {
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("stream client disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, flusher, event); err != nil {
				logger.Warn("failed to write stream event",
					"task_id", event.TaskID,
					"event_type", event.Type,
					"error", err)
				return
			}
		}
	}
}

// writeSSEEvent writes one event as an SSE frame and flushes it. Events that
// cannot be encoded are replaced by an error event so the client still hears
// about the failure on the open stream.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event notify.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		fallback := notify.NewErrorEvent(event.TaskID, codeInternalError, "failed to encode event", nil)
		if data, err = json.Marshal(fallback); err != nil {
			return fmt.Errorf("encoding error event: %w", err)
		}
		event = fallback
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
