// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice name, e.g. "hi-IN-Standard-A"
	Language   string  // Voice locale, e.g. "hi-IN"
	Speed      float64 // Speaking rate (0.25-4.0, default 1.0)
	Format     string  // Output format: "mp3", "wav" (linear16) or "ogg" (opus)
	SampleRate int     // Optional output sample rate
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Encoded audio
	Format string // Audio format
}
