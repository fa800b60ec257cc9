package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestInternalTokenRejectsMissingHeader(t *testing.T) {
	handler := InternalToken("s3cret", nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestInternalTokenRejectsWrongToken(t *testing.T) {
	handler := InternalToken("s3cret", nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-internal-token", "wrong")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestInternalTokenAllowsEitherHeader(t *testing.T) {
	handler := InternalToken("s3cret", nil)(okHandler())

	for _, header := range []string{"x-internal-token", "x-internal-secret"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(header, "s3cret")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("header %s: expected 200 got %d", header, resp.Code)
		}
	}
}

func TestInternalTokenFailsClosedWhenUnconfigured(t *testing.T) {
	handler := InternalToken("", nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-internal-token", "anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
