package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"staffdesk/internal/transport/http/api"
)

// DecodeJSON decodes the request body into dst. On failure it writes the
// error envelope and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		failDecode(w, err, requestID)
		return false
	}
	return true
}

// ReadBody returns the raw body for handlers that hash or forward it.
func ReadBody(w http.ResponseWriter, r *http.Request, requestID string) ([]byte, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		failDecode(w, err, requestID)
		return nil, false
	}
	return raw, true
}

func UnmarshalJSON(w http.ResponseWriter, raw []byte, dst any, requestID string) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		failDecode(w, err, requestID)
		return false
	}
	return true
}

func failDecode(w http.ResponseWriter, err error, requestID string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		return
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
}
