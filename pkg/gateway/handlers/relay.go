package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/apierror"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/lifecycle"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/session"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/sessions"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/mw"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RelayHandler upgrades a request to a translation session and runs it until
// the client goes away.
type RelayHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
	Languages *language.Registry

	STT         session.STTProvider
	Translator  session.Translator
	Synthesizer session.Synthesizer
	Observer    session.Observer
}

func (h RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		apierror.Write(w, http.StatusMethodNotAllowed, &apierror.Error{Type: apierror.ErrMethodNotAllowed, Message: "method not allowed", RequestID: reqID})
		return
	}
	if h.Lifecycle.IsDraining() {
		apierror.Write(w, http.StatusServiceUnavailable, &apierror.Error{Type: apierror.ErrOverloaded, Message: "relay is draining", Code: "draining", RequestID: reqID})
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		apierror.Write(w, http.StatusBadRequest, &apierror.Error{Type: apierror.ErrInvalidRequest, Message: "websocket upgrade required", Param: "Upgrade", RequestID: reqID})
		return
	}
	if !h.originAllowed(r) {
		apierror.Write(w, http.StatusForbidden, &apierror.Error{Type: apierror.ErrPermission, Message: "origin is not allowed", Param: "Origin", RequestID: reqID})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionID := uuid.NewString()
	s, err := session.New(session.Dependencies{
		Conn:        conn,
		Logger:      logger.With("request_id", reqID),
		Languages:   h.Languages,
		STT:         h.STT,
		Translator:  h.Translator,
		Synthesizer: h.Synthesizer,
		Observer:    h.Observer,
		SessionID:   sessionID,
		Config:      SessionConfig(h.Config),
	})
	if err != nil {
		logger.Error("failed to initialize session", "request_id", reqID, "error", err)
		_ = conn.WriteJSON(map[string]string{"error": "Failed to initialize session."})
		return
	}

	unregister := h.Sessions.Register(sessionID, r.RemoteAddr, s)
	defer unregister()

	logger.Info("client connected", "session_id", sessionID, "request_id", reqID, "remote_addr", r.RemoteAddr)
	if err := s.Run(); err != nil {
		logger.Warn("session ended with error", "session_id", sessionID, "request_id", reqID, "error", err)
		return
	}
	logger.Info("client disconnected", "session_id", sessionID, "request_id", reqID)
}

func (h RelayHandler) originAllowed(r *http.Request) bool {
	return mw.OriginAllowed(h.Config.CORSAllowedOrigins, r.Header.Get("Origin"), r.Host)
}

// SessionConfig maps process configuration onto per-session settings.
func SessionConfig(cfg config.Config) session.Config {
	return session.Config{
		PingInterval:        cfg.WSPingInterval,
		WriteTimeout:        cfg.WSWriteTimeout,
		ReadTimeout:         cfg.WSReadTimeout,
		MaxAudioFrameBytes:  cfg.MaxAudioFrameBytes,
		MinAudioFrameBytes:  cfg.MinAudioFrameBytes,
		AudioQueueMaxFrames: cfg.AudioQueueMaxFrames,
		AudioQueueMaxBytes:  cfg.AudioQueueMaxBytes,
		ReinitBurst:         cfg.ReinitBurst,
		ReinitInterval:      cfg.ReinitInterval,
		ConfigTimeout:       cfg.ConfigTimeout,
		EnrichTimeout:       cfg.EnrichTimeout,
		OutboundQueueSize:   cfg.OutboundQueueSize,
		STTEncoding:         cfg.STTEncoding,
		STTSampleRate:       cfg.STTSampleRate,
		STTModel:            cfg.STTModel,
		SpeakingRate:        cfg.TTSSpeakingRate,
		AudioFormat:         "mp3",
	}
}
