// Package httputil holds the JSON helpers shared by the HTTP handlers and the
// API client.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/R3E-Network/loyalty_layer/internal/errors"
)

// maxRequestBody bounds decoded request payloads.
const maxRequestBody = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse with a free-form message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError maps err to its status and writes the error body. Errors
// outside the taxonomy are reported as internal with their message.
func WriteServiceError(w http.ResponseWriter, err error) {
	svcErr, ok := errors.As(err)
	if !ok {
		svcErr = errors.Internal(err)
	}
	status := svcErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, ErrorResponse{
		Error:   svcErr.Message,
		Code:    string(svcErr.Code),
		Details: svcErr.Details,
	})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteServiceError(w, errors.Validation("%s", message))
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	WriteServiceError(w, errors.NotFound(message))
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, err error) {
	WriteServiceError(w, errors.Internal(err))
}

// DecodeJSON decodes a bounded JSON request body into dst. Malformed or
// oversized payloads yield a validation error.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.Validation("request body is required")
	}
	body, truncated, err := ReadAllWithLimit(r.Body, maxRequestBody)
	if err != nil {
		return errors.Validation("read request body: %v", err)
	}
	if truncated {
		return errors.Validation("request body exceeds %d bytes", maxRequestBody)
	}
	if len(body) == 0 {
		return errors.Validation("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether more data was
// available.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// ReadAllStrict reads the whole stream and fails if it exceeds limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	body, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return body, nil
}
