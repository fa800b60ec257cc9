package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPostCheckoutService struct {
	url         string
	err         error
	lastSession string
}

func (s *stubPostCheckoutService) Confirm(ctx context.Context, sessionID string) (string, error) {
	s.lastSession = sessionID
	return s.url, s.err
}

func TestPostCheckoutRedirects(t *testing.T) {
	t.Parallel()

	svc := &stubPostCheckoutService{url: "https://main.example.com/success?videoId=vid-1&token=tok"}
	handler := PostCheckout(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/post-checkout?session_id=cs_1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != svc.url {
		t.Fatalf("expected redirect to %q, got %q", svc.url, got)
	}
	if svc.lastSession != "cs_1" {
		t.Fatalf("expected session id forwarded, got %q", svc.lastSession)
	}
}

func TestPostCheckoutMissingSessionID(t *testing.T) {
	t.Parallel()

	svc := &stubPostCheckoutService{url: "https://main.example.com/success"}
	handler := PostCheckout(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/post-checkout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastSession != "" {
		t.Fatalf("service must not be called without a session id, got %q", svc.lastSession)
	}
}
