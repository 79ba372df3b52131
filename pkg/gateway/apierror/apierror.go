// Package apierror renders HTTP error responses for the relay's REST surface.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/protocol"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
)

type ErrorType string

const (
	ErrInvalidRequest   ErrorType = "invalid_request_error"
	ErrPermission       ErrorType = "permission_error"
	ErrNotFound         ErrorType = "not_found_error"
	ErrMethodNotAllowed ErrorType = "method_not_allowed_error"
	ErrOverloaded       ErrorType = "overloaded_error"
	ErrAPI              ErrorType = "api_error"
)

type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Param     string    `json:"param,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Type) + ": " + e.Message
}

type Envelope struct {
	Error *Error `json:"error"`
}

func FromError(err error, requestID string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Type:      ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &Error{
			Type:      ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		out := *apiErr
		out.RequestID = requestID
		return &out, StatusFromType(apiErr.Type)
	}

	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) && decodeErr != nil {
		return &Error{
			Type:      ErrInvalidRequest,
			Message:   decodeErr.Message,
			Code:      decodeErr.Code,
			Param:     decodeErr.Param,
			RequestID: requestID,
		}, http.StatusBadRequest
	}

	if errors.Is(err, language.ErrUnknownLanguage) {
		return &Error{
			Type:      ErrNotFound,
			Message:   err.Error(),
			RequestID: requestID,
		}, http.StatusNotFound
	}

	// Unknown errors are not echoed to clients.
	return &Error{
		Type:      ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func StatusFromType(t ErrorType) int {
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrPermission:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write encodes err as a JSON envelope with the given status.
func Write(w http.ResponseWriter, status int, err *Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: err})
}

// WriteError maps err with FromError and writes the result.
func WriteError(w http.ResponseWriter, requestID string, err error) {
	apiErr, status := FromError(err, requestID)
	Write(w, status, apiErr)
}
