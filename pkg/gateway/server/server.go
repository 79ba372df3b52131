package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/handlers"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/lifecycle"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/session"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/sessions"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/metrics"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/mw"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

// Backends are the shared collaborators handed to every session.
type Backends struct {
	Languages   *language.Registry
	STT         session.STTProvider
	Translator  session.Translator
	Synthesizer session.Synthesizer
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	backends  Backends
	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Tracker
	metrics   *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, backends Backends) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if backends.Languages == nil {
		backends.Languages = language.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		backends:  backends,
		lifecycle: &lifecycle.Lifecycle{},
		sessions:  sessions.NewTracker(),
	}
	if cfg.MetricsEnabled {
		s.metrics = metrics.NewMetrics("translator_relay")
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	relay := handlers.RelayHandler{
		Config:      s.cfg,
		Logger:      s.logger,
		Lifecycle:   s.lifecycle,
		Sessions:    s.sessions,
		Languages:   s.backends.Languages,
		STT:         s.backends.STT,
		Translator:  s.backends.Translator,
		Synthesizer: s.backends.Synthesizer,
	}
	if s.metrics != nil {
		relay.Observer = s.metrics
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
		Languages: s.backends.Languages,
	})
	s.mux.Handle("GET /languages", handlers.LanguagesHandler{Languages: s.backends.Languages})
	s.mux.Handle("GET /sessions", handlers.SessionsHandler{Sessions: s.sessions})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.Handle("/ws", relay)
	s.mux.Handle("/", handlers.StaticHandler{
		Dir:      s.cfg.StaticDir,
		Relay:    relay,
		NotFound: handlers.NotFoundHandler{},
	})
}

func (s *Server) Handler() http.Handler {
	var rec mw.RequestRecorder
	if s.metrics != nil {
		rec = s.metrics
	}

	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, rec, h)
	h = mw.RequestID(h)
	return h
}

// Metrics returns nil when metrics are disabled.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// SetDraining flips readiness; draining servers refuse new sessions.
func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

func (s *Server) ActiveSessions() int {
	return s.sessions.Count()
}

// NotifySessionsDraining warns every live client that the relay is going
// away. It returns the number of sessions notified.
func (s *Server) NotifySessionsDraining() int {
	return s.sessions.NotifyAll("server_draining", "The server is restarting. Please reconnect shortly.")
}

// WaitSessions blocks until all sessions end or ctx is done.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

func (s *Server) CancelSessions() int {
	return s.sessions.CancelAll()
}
