package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/R3E-Network/loyalty_layer/internal/errors"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", errors.Validation("missing required field"), http.StatusBadRequest, "missing required field"},
		{"not found", errors.NotFound("User not found"), http.StatusNotFound, "User not found"},
		{"wrapped", fmt.Errorf("scan: %w", errors.NotFound("gone")), http.StatusNotFound, "gone"},
		{"plain", fmt.Errorf("connection refused"), http.StatusInternalServerError, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		UserID string `json:"userId"`
	}

	r := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(`{"userId":"u1"}`))
	if err := DecodeJSON(r, &dst); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if dst.UserID != "u1" {
		t.Errorf("userId = %q", dst.UserID)
	}

	for _, body := range []string{"", "{not json", strings.Repeat("x", maxRequestBody+1)} {
		r := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(body))
		err := DecodeJSON(r, &dst)
		if !errors.Is(err, errors.CodeValidation) {
			t.Errorf("body %.10q: expected validation error, got %v", body, err)
		}
	}
}
