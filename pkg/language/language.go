// Package language holds the selectable language table used to resolve a
// client's source/target selectors into recognition, translation and
// synthesis identifiers.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownLanguage is returned by Resolve when a selector has no entry.
var ErrUnknownLanguage = errors.New("unknown language")

// Config is the resolved bundle for one language selector.
type Config struct {
	Key             string `json:"key" yaml:"key"`
	Name            string `json:"name" yaml:"name"`
	SpeechCode      string `json:"speech_code" yaml:"speech_code"`
	TranslationCode string `json:"translation_code" yaml:"translation_code"`
	Voice           string `json:"voice" yaml:"voice"`
	TTSLanguage     string `json:"tts_language,omitempty" yaml:"tts_language,omitempty"`
}

// Registry is an immutable lookup table. It is safe for concurrent use.
type Registry struct {
	byKey map[string]Config
	keys  []string
}

// New builds a registry from entries, applying defaults and rejecting
// duplicate or incomplete entries.
func New(entries []Config) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("language registry must not be empty")
	}
	r := &Registry{byKey: make(map[string]Config, len(entries))}
	for i, e := range entries {
		e.Key = strings.TrimSpace(e.Key)
		if e.Key == "" {
			return nil, fmt.Errorf("languages[%d]: key is required", i)
		}
		if _, dup := r.byKey[e.Key]; dup {
			return nil, fmt.Errorf("languages[%d]: duplicate key %q", i, e.Key)
		}
		if strings.TrimSpace(e.SpeechCode) == "" {
			return nil, fmt.Errorf("languages[%d] (%s): speech_code is required", i, e.Key)
		}
		if strings.TrimSpace(e.TranslationCode) == "" {
			return nil, fmt.Errorf("languages[%d] (%s): translation_code is required", i, e.Key)
		}
		if strings.TrimSpace(e.Voice) == "" {
			return nil, fmt.Errorf("languages[%d] (%s): voice is required", i, e.Key)
		}
		if strings.TrimSpace(e.Name) == "" {
			e.Name = e.Key
		}
		if strings.TrimSpace(e.TTSLanguage) == "" {
			e.TTSLanguage = e.Key
		}
		r.byKey[e.Key] = e
		r.keys = append(r.keys, e.Key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// Resolve returns the entry for key, or an error wrapping ErrUnknownLanguage.
func (r *Registry) Resolve(key string) (Config, error) {
	if r == nil {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, key)
	}
	cfg, ok := r.byKey[strings.TrimSpace(key)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, key)
	}
	return cfg, nil
}

func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// All returns every entry ordered by key.
func (r *Registry) All() []Config {
	if r == nil {
		return nil
	}
	out := make([]Config, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.byKey[k])
	}
	return out
}

var defaultEntries = []Config{
	{Key: "en-US", Name: "English (US)", SpeechCode: "en-US", Voice: "en-US-Standard-C", TranslationCode: "en"},
	{Key: "en-CA", Name: "English (Canada)", SpeechCode: "en-CA", Voice: "en-CA-Standard-A", TranslationCode: "en"},
	{Key: "en-GB", Name: "English (UK)", SpeechCode: "en-GB", Voice: "en-GB-Standard-A", TranslationCode: "en"},
	{Key: "hi-IN", Name: "Hindi (India)", SpeechCode: "hi-IN", Voice: "hi-IN-Standard-A", TranslationCode: "hi"},
	{Key: "fr-CA", Name: "French (Canada)", SpeechCode: "fr-CA", Voice: "fr-CA-Standard-A", TranslationCode: "fr"},
	{Key: "fr-FR", Name: "French (France)", SpeechCode: "fr-FR", Voice: "fr-FR-Standard-A", TranslationCode: "fr"},
	{Key: "es-ES", Name: "Spanish (Spain)", SpeechCode: "es-ES", Voice: "es-ES-Standard-A", TranslationCode: "es"},
	{Key: "es-MX", Name: "Spanish (Mexico)", SpeechCode: "es-MX", Voice: "es-MX-Standard-A", TranslationCode: "es"},
	{Key: "de-DE", Name: "German (Germany)", SpeechCode: "de-DE", Voice: "de-DE-Standard-F", TranslationCode: "de"},
	{Key: "ja-JP", Name: "Japanese (Japan)", SpeechCode: "ja-JP", Voice: "ja-JP-Standard-A", TranslationCode: "ja"},
	{Key: "ko-KR", Name: "Korean (South Korea)", SpeechCode: "ko-KR", Voice: "ko-KR-Standard-A", TranslationCode: "ko"},
	{Key: "cmn-CN", Name: "Chinese (Mandarin, CN)", SpeechCode: "cmn-CN", Voice: "cmn-CN-Standard-A", TranslationCode: "zh-CN"},
	{Key: "ar-XA", Name: "Arabic (MSA)", SpeechCode: "ar-XA", Voice: "ar-XA-Standard-A", TranslationCode: "ar"},
}

// Default returns the built-in language table.
func Default() *Registry {
	r, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return r
}
