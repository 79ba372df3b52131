package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/stt"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/tts"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

// Values placed in the translation field instead of translated text.
const (
	TranslationPending     = "Translating..."
	TranslationUnavailable = "[Translation Unavailable]"
	TranslationError       = "[Translation Error]"
	PipelineError          = "[Pipeline Error]"
	SynthesisErrorSuffix   = " [TTS Gen Error]"
)

const (
	stageTranslate  = "translate"
	stageSynthesize = "synthesize"
)

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error)
}

// LanguagePair is the resolved source/target selection of a session.
type LanguagePair struct {
	Source language.Config
	Target language.Config
}

// EnrichmentResult is one outbound transcript message before encoding.
type EnrichmentResult struct {
	Transcript  string
	IsFinal     bool
	Translation string
	Audio       []byte
	Err         error
}

// Enricher runs translate-then-synthesize for final transcripts.
type Enricher struct {
	Translator   Translator
	Synthesizer  Synthesizer
	SpeakingRate float64
	AudioFormat  string
	Timeout      time.Duration
	Observer     Observer
}

func isSentinel(text string) bool {
	switch text {
	case TranslationPending, TranslationUnavailable, TranslationError, PipelineError:
		return true
	}
	return false
}

// needsRemote reports whether delta will cause remote calls.
func needsRemote(delta stt.TranscriptDelta) bool {
	return delta.IsFinal && strings.TrimSpace(delta.Text) != ""
}

// Enrich builds the result for one recognition event. ok is false when the
// event produces no client message (an empty interim).
func (e *Enricher) Enrich(ctx context.Context, delta stt.TranscriptDelta, pair LanguagePair) (res EnrichmentResult, ok bool) {
	res = EnrichmentResult{Transcript: delta.Text, IsFinal: delta.IsFinal}
	text := strings.TrimSpace(delta.Text)

	if !delta.IsFinal {
		if text == "" {
			return res, false
		}
		res.Translation = TranslationPending
		return res, true
	}
	if text == "" {
		return res, true
	}

	defer func() {
		if v := recover(); v != nil {
			res = EnrichmentResult{
				Transcript:  delta.Text,
				IsFinal:     true,
				Translation: PipelineError,
				Err:         fmt.Errorf("enrichment panic: %v", v),
			}
			ok = true
		}
	}()

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	observer := observerOrNoop(e.Observer)

	start := time.Now()
	translated, err := e.Translator.Translate(ctx, delta.Text, pair.Source.TranslationCode, pair.Target.TranslationCode)
	observer.EnrichmentObserved(stageTranslate, time.Since(start), err)
	if err != nil {
		res.Translation = TranslationError
		res.Err = fmt.Errorf("%w: %v", ErrTranslationFailed, err)
		return res, true
	}
	if strings.TrimSpace(translated) == "" {
		res.Translation = TranslationUnavailable
		return res, true
	}
	res.Translation = translated
	if isSentinel(translated) || e.Synthesizer == nil {
		return res, true
	}

	start = time.Now()
	audio, err := e.Synthesizer.Synthesize(ctx, translated, tts.SynthesizeOptions{
		Voice:    pair.Target.Voice,
		Language: pair.Target.TTSLanguage,
		Speed:    e.SpeakingRate,
		Format:   e.AudioFormat,
	})
	observer.EnrichmentObserved(stageSynthesize, time.Since(start), err)
	if err != nil {
		res.Translation = translated + SynthesisErrorSuffix
		res.Err = fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
		return res, true
	}
	if audio != nil && len(audio.Audio) > 0 {
		res.Audio = audio.Audio
	}
	return res, true
}
