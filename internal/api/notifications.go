package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ─── Notifications API ──────────────────────────────────────────────────────
//
// GET    /api/notifications        feed, newest first (?limit=n)
// DELETE /api/notifications/{id}   dismiss
// GET    /api/notifications/live   delivered notifications as Server-Sent Events

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": s.app.Bus.Recent(limit),
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.app.Bus.Dismiss(id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotificationsSSE streams notifications as they are delivered.
// Duplicates suppressed by the bus never reach the stream.
func (s *Server) handleNotificationsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, unsub := s.app.Bus.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			w.Write([]byte("event: " + string(n.Level) + "\n"))
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
