package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
)

// handleChanges performs one reconcile round on demand and reports which
// datasets moved. Clients polling this endpoint get the same answer the
// background loop would have published.
func (a *API) handleChanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	cs, err := a.changes.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "change detection failed")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// ChangeStream handles Server-Sent Events for dataset change notifications.
func (a *API) ChangeStream(w http.ResponseWriter, r *http.Request) {
	if a.changes == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.changes.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for cs := range ch {
		payload, err := json.Marshal(cs)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
