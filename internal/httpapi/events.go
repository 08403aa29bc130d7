package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// keepAliveInterval spaces SSE comment frames on an idle stream.
var keepAliveInterval = 15 * time.Second

// eventsHandler streams session events as text/event-stream until the
// client goes away or the server shuts down.
func eventsHandler(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		id, ch, cancel := src.Subscribe()
		defer cancel()
		sseSubscribers.Inc()
		defer sseSubscribers.Dec()

		ctx, stop := joinContexts(serverBaseCtx, r.Context())
		defer stop()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, ": subscribed %s\n\n", id)
		flusher.Flush()

		if zlog != nil && requestLogLevel(r) >= LevelInfo {
			zlog.Info().Str("subscriber", id.String()).Str("request_id", middleware.GetReqID(r.Context())).Msg("events stream open")
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, open := <-ch:
				if !open {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
