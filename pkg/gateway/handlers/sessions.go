package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/sessions"
)

// SessionsHandler reports the live sessions, oldest first.
type SessionsHandler struct {
	Sessions *sessions.Tracker
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Sessions.Snapshot()
	if snapshot == nil {
		snapshot = []sessions.Info{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(struct {
		Count    int             `json:"count"`
		Sessions []sessions.Info `json:"sessions"`
	}{Count: len(snapshot), Sessions: snapshot})
}
