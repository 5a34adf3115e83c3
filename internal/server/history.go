package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/voxkey/internal/observe"
	"github.com/MrWong99/voxkey/pkg/history"
)

// maxHistoryLimit caps the "limit" query parameter.
const maxHistoryLimit = 500

type transcriptsResponse struct {
	Transcripts []history.Entry `json:"transcripts"`
}

// transcripts serves GET /v1/transcripts?q=...&limit=N.
func (s *Server) transcripts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		entries []history.Entry
		err     error
	)
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		entries, err = s.history.Search(r.Context(), query, limit)
	} else {
		entries, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		observe.Logger(r.Context()).Error("server: query history", "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(transcriptsResponse{Transcripts: entries})
}
