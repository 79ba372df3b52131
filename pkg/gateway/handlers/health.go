package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/lifecycle"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/sessions"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
	Languages *language.Registry
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool       `json:"ok"`
		Draining       bool       `json:"draining"`
		DrainingSince  *time.Time `json:"draining_since,omitempty"`
		ActiveSessions int        `json:"active_sessions"`
		Languages      int        `json:"languages"`
		Issues         []string   `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	draining := h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}
	if h.Languages.Len() == 0 {
		issues = append(issues, "language registry is empty")
	}

	resp := readyResp{
		OK:             len(issues) == 0,
		Draining:       draining,
		ActiveSessions: h.Sessions.Count(),
		Languages:      h.Languages.Len(),
		Issues:         issues,
	}
	if since, ok := h.Lifecycle.DrainingSince(); ok {
		resp.DrainingSince = &since
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
