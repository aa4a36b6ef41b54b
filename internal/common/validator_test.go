package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type lookupRequest struct {
	URL      string `validate:"required,url"`
	MaxWidth int    `validate:"min=0"`
}

func TestGenericEchoValidator(t *testing.T) {
	tests := []struct {
		name    string
		req     lookupRequest
		wantMsg string
	}{
		{"valid", lookupRequest{URL: "https://example.com/v/1"}, ""},
		{"missing url", lookupRequest{}, "invalid request: URL failed required"},
		{"every problem named", lookupRequest{URL: "nope", MaxWidth: -1}, "invalid request: URL failed url, MaxWidth failed min"},
	}
	v := &GenericEchoValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("Validate() error = %v, want *echo.HTTPError", err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", httpErr.Code)
			}
			if httpErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", httpErr.Message, tt.wantMsg)
			}
		})
	}
}
