package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeClientMessage_Config(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"config","sourceLang":" en-US ","targetLang":"hi-IN"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	cfg, ok := msg.(ClientConfig)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientConfig", msg)
	}
	if cfg.SourceLang != "en-US" || cfg.TargetLang != "hi-IN" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}
}

func TestDecodeClientMessage_RejectsNonControlFrames(t *testing.T) {
	cases := map[string][]byte{
		"binary":       {0x1a, 0x45, 0xdf, 0xa3, 0x00},
		"invalid json": []byte(`{"type":`),
		"missing type": []byte(`{"sourceLang":"en-US"}`),
		"unknown type": []byte(`{"type":"hello"}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClientMessage(raw)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err=%v, want *DecodeError", err)
			}
		})
	}
}

func TestValidateConfig_RequiresBothSelectors(t *testing.T) {
	err := ValidateConfig(ClientConfig{Type: TypeConfig, SourceLang: "en-US"})
	var de *DecodeError
	if !errors.As(err, &de) || de.Param != "targetLang" {
		t.Fatalf("err=%v, want targetLang decode error", err)
	}
}

func TestLooksLikeJSON(t *testing.T) {
	if !LooksLikeJSON([]byte("  \n{\"type\":\"config\"}")) {
		t.Fatalf("expected leading whitespace to be skipped")
	}
	if LooksLikeJSON([]byte("RIFF")) {
		t.Fatalf("audio header must not look like json")
	}
}

func TestServerResult_AudioNullWhenAbsent(t *testing.T) {
	b, err := json.Marshal(NewServerResult("hello", true, "[Translation Error]", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"synthesizedAudio":null`) {
		t.Fatalf("payload=%s", b)
	}
	if !strings.Contains(string(b), `"isFinal":true`) {
		t.Fatalf("payload=%s", b)
	}
}

func TestServerResult_AudioBase64(t *testing.T) {
	msg := NewServerResult("hello", true, "नमस्ते", []byte("B"))
	if msg.SynthesizedAudio == nil || *msg.SynthesizedAudio != base64.StdEncoding.EncodeToString([]byte("B")) {
		t.Fatalf("audio=%v", msg.SynthesizedAudio)
	}

	var decoded map[string]any
	b, _ := json.Marshal(msg)
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"transcription", "isFinal", "translation", "synthesizedAudio"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}
}

func TestServerConfigAck_Shape(t *testing.T) {
	b, _ := json.Marshal(ServerConfigAck{Type: TypeConfigAck, Source: "English (US)", Target: "Hindi (India)"})
	want := `{"type":"config_ack","source":"English (US)","target":"Hindi (India)"}`
	if string(b) != want {
		t.Fatalf("payload=%s, want %s", b, want)
	}
}
