package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type TranslateBackend string

const (
	TranslateBackendGoogle TranslateBackend = "google"
	TranslateBackendGemini TranslateBackend = "gemini"
)

type Config struct {
	Addr      string
	StaticDir string

	// Google Cloud
	ProjectID       string
	CredentialsFile string

	// Optional registry file; empty means the built-in table.
	LanguagesFile string

	TranslateBackend  TranslateBackend
	TranslateLocation string
	GeminiModel       string
	GeminiLocation    string

	// Recognition stream settings.
	STTModel      string
	STTEncoding   string
	STTSampleRate int

	TTSSpeakingRate float64

	// Audio ingestion.
	MinAudioFrameBytes  int
	MaxAudioFrameBytes  int64
	AudioQueueMaxFrames int
	AudioQueueMaxBytes  int

	// Recognition stream re-creation budget.
	ReinitBurst    int
	ReinitInterval time.Duration

	// WebSocket
	WSPingInterval    time.Duration
	WSWriteTimeout    time.Duration
	WSReadTimeout     time.Duration
	ConfigTimeout     time.Duration
	EnrichTimeout     time.Duration
	OutboundQueueSize int

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	MetricsEnabled bool

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	LogLevel  slog.Level
	LogFormat string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                defaultAddr(),
		StaticDir:           envOr("RELAY_STATIC_DIR", "public"),
		ProjectID:           envOr("GOOGLE_CLOUD_PROJECT", ""),
		CredentialsFile:     envOr("GOOGLE_APPLICATION_CREDENTIALS", ""),
		LanguagesFile:       envOr("RELAY_LANGUAGES_FILE", ""),
		TranslateBackend:    TranslateBackend(strings.ToLower(envOr("RELAY_TRANSLATE_BACKEND", string(TranslateBackendGoogle)))),
		TranslateLocation:   envOr("RELAY_TRANSLATE_LOCATION", "global"),
		GeminiModel:         envOr("RELAY_GEMINI_MODEL", ""),
		GeminiLocation:      envOr("RELAY_GEMINI_LOCATION", "us-central1"),
		STTModel:            envOr("RELAY_STT_MODEL", ""),
		STTEncoding:         strings.ToUpper(envOr("RELAY_STT_ENCODING", "WEBM_OPUS")),
		STTSampleRate:       envIntOr("RELAY_STT_SAMPLE_RATE", 48000),
		TTSSpeakingRate:     envFloat64Or("RELAY_TTS_SPEAKING_RATE", 1.0),
		MinAudioFrameBytes:  envIntOr("RELAY_MIN_AUDIO_FRAME_BYTES", 100),
		MaxAudioFrameBytes:  envInt64Or("RELAY_MAX_AUDIO_FRAME_BYTES", 1<<20), // 1 MiB
		AudioQueueMaxFrames: envIntOr("RELAY_AUDIO_QUEUE_MAX_FRAMES", 512),
		AudioQueueMaxBytes:  envIntOr("RELAY_AUDIO_QUEUE_MAX_BYTES", 8<<20), // 8 MiB
		ReinitBurst:         envIntOr("RELAY_REINIT_BURST", 3),
		ReinitInterval:      envDurationOr("RELAY_REINIT_INTERVAL", 2*time.Second),
		WSPingInterval:      envDurationOr("RELAY_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("RELAY_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:       envDurationOr("RELAY_WS_READ_TIMEOUT", 0),
		ConfigTimeout:       envDurationOr("RELAY_CONFIG_TIMEOUT", 0),
		EnrichTimeout:       envDurationOr("RELAY_ENRICH_TIMEOUT", 30*time.Second),
		OutboundQueueSize:   envIntOr("RELAY_OUTBOUND_QUEUE_SIZE", 128),
		CORSAllowedOrigins:  make(map[string]struct{}),
		MetricsEnabled:      envBoolOr("RELAY_METRICS_ENABLED", true),
		ReadHeaderTimeout:   envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		LogFormat:           strings.ToLower(envOr("RELAY_LOG_FORMAT", "text")),
	}

	for _, origin := range splitCSV(os.Getenv("RELAY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.ProjectID == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLOUD_PROJECT must be set")
	}

	switch cfg.TranslateBackend {
	case TranslateBackendGoogle, TranslateBackendGemini:
	default:
		return Config{}, fmt.Errorf("RELAY_TRANSLATE_BACKEND must be one of google|gemini")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("RELAY_LOG_FORMAT must be one of text|json")
	}
	level, err := parseLevel(envOr("RELAY_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.STTSampleRate <= 0 {
		return Config{}, fmt.Errorf("RELAY_STT_SAMPLE_RATE must be > 0")
	}
	if cfg.TTSSpeakingRate < 0.25 || cfg.TTSSpeakingRate > 4.0 {
		return Config{}, fmt.Errorf("RELAY_TTS_SPEAKING_RATE must be between 0.25 and 4.0")
	}
	if cfg.MinAudioFrameBytes < 0 {
		return Config{}, fmt.Errorf("RELAY_MIN_AUDIO_FRAME_BYTES must be >= 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if int64(cfg.MinAudioFrameBytes) > cfg.MaxAudioFrameBytes {
		return Config{}, fmt.Errorf("RELAY_MIN_AUDIO_FRAME_BYTES must be <= RELAY_MAX_AUDIO_FRAME_BYTES")
	}
	if cfg.AudioQueueMaxFrames <= 0 {
		return Config{}, fmt.Errorf("RELAY_AUDIO_QUEUE_MAX_FRAMES must be > 0")
	}
	if cfg.AudioQueueMaxBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_AUDIO_QUEUE_MAX_BYTES must be > 0")
	}
	if cfg.ReinitBurst < 0 {
		return Config{}, fmt.Errorf("RELAY_REINIT_BURST must be >= 0")
	}
	if cfg.ReinitBurst > 0 && cfg.ReinitInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_REINIT_INTERVAL must be > 0 when RELAY_REINIT_BURST is set")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("RELAY_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.ConfigTimeout < 0 {
		return Config{}, fmt.Errorf("RELAY_CONFIG_TIMEOUT must be >= 0")
	}
	if cfg.EnrichTimeout < 0 {
		return Config{}, fmt.Errorf("RELAY_ENRICH_TIMEOUT must be >= 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("RELAY_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// defaultAddr prefers RELAY_ADDR, then a bare PORT as set by most hosting
// platforms.
func defaultAddr() string {
	if addr := envOr("RELAY_ADDR", ""); addr != "" {
		return addr
	}
	if port := envOr("PORT", ""); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return ":8080"
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("RELAY_LOG_LEVEL must be one of debug|info|warn|error")
	}
	return level, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
