package session

import (
	"errors"
	"fmt"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/stt"
)

var (
	// ErrChannelNotWritable reports that the recognition channel is absent,
	// still opening, or closed. The frame must be kept and retried.
	ErrChannelNotWritable = errors.New("recognition channel not writable")

	ErrTranslationFailed = errors.New("translation failed")
	ErrSynthesisFailed   = errors.New("synthesis failed")

	// ErrClientDisconnect ends a session normally.
	ErrClientDisconnect = errors.New("client disconnected")

	errBackpressure = errors.New("outbound backpressure")
)

// ChannelError is a failure reported by the recognition backend.
type ChannelError struct {
	Code    int
	Details string
	Err     error
}

func newChannelError(err error) *ChannelError {
	code, details := stt.ErrorDetails(err)
	return &ChannelError{Code: code, Details: details, Err: err}
}

func (e *ChannelError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("Speech API error (code %d): %s", e.Code, e.Details)
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
