// Package stt provides streaming speech-to-text.
package stt

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned when audio is sent on a stream that has been
// closed locally.
var ErrStreamClosed = errors.New("stt stream closed")

// Provider opens streaming recognition sessions.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// NewStreamingSTT opens a bidirectional recognition stream. Audio is sent
	// with SendAudio and events are received from Events.
	NewStreamingSTT(ctx context.Context, cfg StreamConfig) (*StreamingSTT, error)
}

// StreamConfig configures a recognition stream.
type StreamConfig struct {
	Language             string // BCP-47 recognition locale, e.g. "en-US"
	Encoding             string // e.g. "WEBM_OPUS", "LINEAR16"
	SampleRate           int    // Hz
	Model                string // optional provider model
	AutomaticPunctuation bool
	InterimResults       bool
}

// EventKind discriminates stream events.
type EventKind int

const (
	EventTranscript EventKind = iota
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventTranscript:
		return "transcript"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// TranscriptDelta is a streaming transcript update.
type TranscriptDelta struct {
	Text       string  // Best alternative transcript
	IsFinal    bool    // True if this is a settled segment
	Stability  float32 // Provider stability estimate for interim results
	Confidence float32 // Confidence for final results
}

// Event is one message pushed by a recognition stream.
type Event struct {
	Kind  EventKind
	Delta TranscriptDelta
	Err   error
}
