// Package protocol defines the JSON messages exchanged with browser clients
// on the live translation websocket.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeConfig    = "config"
	TypeConfigAck = "config_ack"
	TypeWarning   = "warning"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientConfig selects the source and target languages of a session. It may
// be sent again at any time to reconfigure.
type ClientConfig struct {
	Type       string `json:"type"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

// LooksLikeJSON reports whether a frame could be a control message. Frames
// that fail this check are audio.
func LooksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// DecodeClientMessage decodes a control frame. Anything that is not a
// recognized control message yields a *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	if !LooksLikeJSON(data) {
		return nil, badRequest("not a json object", "")
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeConfig:
		var msg ClientConfig
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid config frame", "")
		}
		msg.Type = typ
		msg.SourceLang = strings.TrimSpace(msg.SourceLang)
		msg.TargetLang = strings.TrimSpace(msg.TargetLang)
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// ValidateConfig checks that both selectors are present.
func ValidateConfig(msg ClientConfig) error {
	if msg.SourceLang == "" {
		return badRequest("config.sourceLang is required", "sourceLang")
	}
	if msg.TargetLang == "" {
		return badRequest("config.targetLang is required", "targetLang")
	}
	return nil
}

type ServerConfigAck struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ServerResult carries one transcript with its translation. SynthesizedAudio
// is base64 encoded audio, or null when none was produced.
type ServerResult struct {
	Transcription    string  `json:"transcription"`
	IsFinal          bool    `json:"isFinal"`
	Translation      string  `json:"translation"`
	SynthesizedAudio *string `json:"synthesizedAudio"`
}

func NewServerResult(transcription string, isFinal bool, translation string, audio []byte) ServerResult {
	msg := ServerResult{
		Transcription: transcription,
		IsFinal:       isFinal,
		Translation:   translation,
	}
	if len(audio) > 0 {
		encoded := base64.StdEncoding.EncodeToString(audio)
		msg.SynthesizedAudio = &encoded
	}
	return msg
}

type ServerError struct {
	Error string `json:"error"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
