package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rewards/internal/core"
	"rewards/internal/ledger"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/rewards/transactions/1").
		Body(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := w.Header().Get("Location"); got != "/rewards/transactions/1" {
		t.Errorf("Location = %q", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"id":1}` {
		t.Errorf("Body = %s", got)
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("invalid customer id"), http.StatusBadRequest, `{"error":"invalid customer id"}`},
		{"not found", NotFoundError("not found"), http.StatusNotFound, `{"error":"not found"}`},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`},
		{"internal", InternalServerError("list transactions: boom"), http.StatusInternalServerError, `{"status":"failed","error":"list transactions: boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("Body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestServiceErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        core.NewValidationError(core.MsgRangeTooLong),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Date range should not exceed three months."}`,
		},
		{
			name:       "wrapped validation",
			err:        fmt.Errorf("normalize: %w", core.NewValidationError(core.MsgStartAfterEnd)),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"start date must be earlier than the end date."}`,
		},
		{
			name:       "infrastructure",
			err:        &core.InfrastructureError{Op: "list transactions", Err: errors.New("connection refused")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"status":"failed","error":"internal server error"}`,
		},
		{
			name:       "unsupported",
			err:        ledger.ErrUnsupported,
			wantStatus: http.StatusNotImplemented,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ServiceErrorResponse(tt.err).Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" {
				if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
					t.Errorf("Body = %s, want %s", got, tt.wantBody)
				}
			}
		})
	}
}
