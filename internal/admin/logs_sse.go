package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// LogsEvents serves GET /logs/events: a backlog replay of the ring
// buffer's retained entries followed by a live feed, supporting multiple
// concurrent admin viewers.
func (s *Server) LogsEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")

	live, unsubscribe := s.Logs.Subscribe()
	defer unsubscribe()

	eventID := 0
	writeEntry := func(e interface{}) bool {
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		eventID++
		fmt.Fprintf(w, "id: %d\n", eventID)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		return true
	}

	for _, e := range s.Logs.Snapshot() {
		if !writeEntry(e) {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-live:
			if !ok {
				return
			}
			if !writeEntry(e) {
				return
			}
		}
	}
}
