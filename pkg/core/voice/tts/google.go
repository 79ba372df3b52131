package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
)

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// GoogleProvider implements Provider on Google Cloud Text-to-Speech.
type GoogleProvider struct {
	client     *texttospeech.Client
	synthesize synthesizeFunc
}

// NewGoogle creates a Text-to-Speech client. The caller must Close the provider.
func NewGoogle(ctx context.Context, opts ...option.ClientOption) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	return &GoogleProvider{
		client: client,
		synthesize: func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
			return client.SynthesizeSpeech(ctx, req)
		},
	}, nil
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Synthesize renders text with the selected voice.
func (p *GoogleProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if p == nil || p.synthesize == nil {
		return nil, errors.New("google tts provider is not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("tts text is required")
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		return nil, errors.New("tts language is required")
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "mp3"
	}
	encoding, err := audioEncoding(format)
	if err != nil {
		return nil, err
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}

	resp, err := p.synthesize(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         strings.TrimSpace(opts.Voice),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   encoding,
			SpeakingRate:    speed,
			SampleRateHertz: int32(opts.SampleRate),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	return &Synthesis{Audio: resp.GetAudioContent(), Format: format}, nil
}

func audioEncoding(format string) (texttospeechpb.AudioEncoding, error) {
	switch format {
	case "mp3":
		return texttospeechpb.AudioEncoding_MP3, nil
	case "wav", "linear16", "pcm":
		return texttospeechpb.AudioEncoding_LINEAR16, nil
	case "ogg", "ogg_opus", "opus":
		return texttospeechpb.AudioEncoding_OGG_OPUS, nil
	default:
		return texttospeechpb.AudioEncoding_AUDIO_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported tts format %q", format)
	}
}
