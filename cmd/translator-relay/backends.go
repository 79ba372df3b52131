package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/stt"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/translate"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/tts"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/config"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/session"
	relayserver "github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/server"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
	"google.golang.org/api/option"
)

func clientOptions(cfg config.Config) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// newGoogleBackends dials the three Google Cloud clients shared by every
// session. The returned close func releases whichever clients were opened.
func newGoogleBackends(ctx context.Context, cfg config.Config, languages *language.Registry) (relayserver.Backends, func() error, error) {
	var closers []io.Closer
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (relayserver.Backends, func() error, error) {
		_ = closeAll()
		return relayserver.Backends{}, nil, err
	}

	opts := clientOptions(cfg)

	speech, err := stt.NewGoogle(ctx, opts...)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, speech)

	synth, err := tts.NewGoogle(ctx, opts...)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, synth)

	var translator session.Translator
	switch cfg.TranslateBackend {
	case config.TranslateBackendGemini:
		g, err := translate.NewGemini(ctx, translate.GeminiConfig{
			Project:         cfg.ProjectID,
			Location:        cfg.GeminiLocation,
			Model:           cfg.GeminiModel,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return fail(err)
		}
		translator = g
	case config.TranslateBackendGoogle, "":
		g, err := translate.NewGoogle(ctx, cfg.ProjectID, cfg.TranslateLocation, opts...)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, g)
		translator = g
	default:
		return fail(fmt.Errorf("unsupported translate backend %q", cfg.TranslateBackend))
	}

	return relayserver.Backends{
		Languages:   languages,
		STT:         session.STTProviderAdapter{Provider: speech},
		Translator:  translator,
		Synthesizer: synth,
	}, closeAll, nil
}
