package render

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

func EncodeResponse(w http.ResponseWriter, statusCode int, resp any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(statusCode)
	if resp == nil {
		return
	}
	// 204 status code doesn't allow sending body. This will prevent possible
	// missuse of the EncodeResponse function.
	if statusCode == http.StatusNoContent {
		return
	}
	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		slog.Error("encode response", slog.Any("err", err))
	}
}

// StatusError is a non-2xx answer from the daemon.
type StatusError struct {
	StatusCode int
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("unexpected status code %d", e.StatusCode)
	}
	return e.Details
}

// DecodeResponse is the client side of EncodeResponse. A 2xx body is decoded
// into v (when v is not nil); anything else becomes a *StatusError carrying
// the "details" field of the error body, or the raw body when it is not JSON.
func DecodeResponse(resp *http.Response, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errBody struct {
			Details string `json:"details"`
		}
		details := strings.TrimSpace(string(body))
		if err := json.Unmarshal(body, &errBody); err == nil {
			details = errBody.Details
		}
		return &StatusError{StatusCode: resp.StatusCode, Details: details}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
