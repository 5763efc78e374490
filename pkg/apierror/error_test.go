package apierror

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestToJSON(t *testing.T) {
	err := ValidationError("Title is required", FieldError{Field: "title", Message: "Title is required"})

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	if e := json.Unmarshal(err.ToJSON(), &body); e != nil {
		t.Fatalf("unmarshal: %v", e)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Error.Code != "VALIDATION_ERROR" || body.Error.Message != "Title is required" {
		t.Errorf("unexpected error body: %+v", body.Error)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "title" {
		t.Errorf("unexpected details: %+v", body.Error.Details)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", err.StatusCode)
	}
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		msg    string
	}{
		{NotFound(""), http.StatusNotFound, "Resource not found"},
		{InternalError(""), http.StatusInternalServerError, "An unexpected error occurred"},
		{ServiceUnavailable(""), http.StatusServiceUnavailable, "Service temporarily unavailable"},
		{BadRequest("bad"), http.StatusBadRequest, "bad"},
	}
	for _, tt := range tests {
		if tt.err.StatusCode != tt.status || tt.err.Message != tt.msg {
			t.Errorf("got %d %q, want %d %q", tt.err.StatusCode, tt.err.Message, tt.status, tt.msg)
		}
	}
}
