package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"staffdesk/internal/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write json failed", zap.Error(err))
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// FailError writes the envelope for err. Errors without a known kind are
// logged and reported as a generic internal error.
func FailError(w http.ResponseWriter, err error, requestID string, logger *zap.Logger) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		if logger == nil {
			logger = zap.L()
		}
		logger.Error("request failed", zap.String("request_id", requestID), zap.Error(err))
		Fail(w, http.StatusInternalServerError, apperr.Code(kind), "internal server error", requestID)
		return
	}

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
		if len(appErr.Fields) > 0 {
			FailWithDetails(w, apperr.HTTPStatus(kind), apperr.Code(kind), message, map[string]any{"fields": appErr.Fields}, requestID)
			return
		}
	}
	Fail(w, apperr.HTTPStatus(kind), apperr.Code(kind), message, requestID)
}
