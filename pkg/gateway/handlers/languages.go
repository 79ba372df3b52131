package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

// LanguagesHandler lists the selectable languages so clients can build
// their source and target pickers.
type LanguagesHandler struct {
	Languages *language.Registry
}

func (h LanguagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type languageResp struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	entries := h.Languages.All()
	out := make([]languageResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, languageResp{Key: e.Key, Name: e.Name})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(struct {
		Languages []languageResp `json:"languages"`
	}{Languages: out})
}
