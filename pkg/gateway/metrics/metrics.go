// Package metrics exposes Prometheus metrics for the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
)

// Metrics holds all Prometheus metrics for the relay. It implements
// session.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Sessions
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Audio
	AudioFramesTotal  *prometheus.CounterVec
	AudioBytesWritten prometheus.Counter

	// Recognition
	ChannelOpensTotal  *prometheus.CounterVec
	ChannelErrorsTotal *prometheus.CounterVec

	// Enrichment
	EnrichmentDuration    *prometheus.HistogramVec
	EnrichmentErrorsTotal *prometheus.CounterVec

	MessagesTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "translator_relay"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"route"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active translation sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished translation sessions",
		},
		[]string{"reason"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Translation session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	audioFramesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Audio frames by outcome",
		},
		[]string{"outcome"},
	)

	audioBytesWritten := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_written_total",
			Help:      "Audio bytes forwarded to speech recognition",
		},
	)

	channelOpensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_streams_opened_total",
			Help:      "Recognition streams opened, by reason",
		},
		[]string{"reason"},
	)

	channelErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognition stream errors, by gRPC code",
		},
		[]string{"code"},
	)

	enrichmentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Translation and synthesis latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	enrichmentErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_errors_total",
			Help:      "Translation and synthesis failures",
		},
		[]string{"stage"},
	)

	messagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_messages_total",
			Help:      "Messages written to clients, by kind",
		},
		[]string{"kind"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		audioFramesTotal,
		audioBytesWritten,
		channelOpensTotal,
		channelErrorsTotal,
		enrichmentDuration,
		enrichmentErrorsTotal,
		messagesTotal,
	)

	return &Metrics{
		registry:              registry,
		RequestsTotal:         requestsTotal,
		RequestDuration:       requestDuration,
		SessionsActive:        sessionsActive,
		SessionsTotal:         sessionsTotal,
		SessionDuration:       sessionDuration,
		AudioFramesTotal:      audioFramesTotal,
		AudioBytesWritten:     audioBytesWritten,
		ChannelOpensTotal:     channelOpensTotal,
		ChannelErrorsTotal:    channelErrorsTotal,
		EnrichmentDuration:    enrichmentDuration,
		EnrichmentErrorsTotal: enrichmentErrorsTotal,
		MessagesTotal:         messagesTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) SessionStarted() {
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionEnded(reason string, d time.Duration) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) FramesDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	m.AudioFramesTotal.WithLabelValues("dropped_" + reason).Add(float64(n))
}

func (m *Metrics) FramesWritten(n int, bytes int) {
	if n > 0 {
		m.AudioFramesTotal.WithLabelValues("written").Add(float64(n))
	}
	if bytes > 0 {
		m.AudioBytesWritten.Add(float64(bytes))
	}
}

func (m *Metrics) ChannelOpened(reason string) {
	m.ChannelOpensTotal.WithLabelValues(reason).Inc()
}

// ChannelError records a recognition failure labelled with the gRPC code
// name, e.g. "OutOfRange".
func (m *Metrics) ChannelError(code int) {
	m.ChannelErrorsTotal.WithLabelValues(codes.Code(uint32(code)).String()).Inc()
}

func (m *Metrics) EnrichmentObserved(stage string, d time.Duration, err error) {
	m.EnrichmentDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.EnrichmentErrorsTotal.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) MessageSent(kind string) {
	m.MessagesTotal.WithLabelValues(kind).Inc()
}
