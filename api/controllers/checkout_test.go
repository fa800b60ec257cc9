package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/clipgate/clipgate-backend/internal/checkout"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
)

type stubCheckoutService struct {
	result    *checkoutsvc.Result
	err       error
	lastInput checkoutsvc.Input
	anonVideo string
}

func (s *stubCheckoutService) Initiate(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.lastInput = input
	return s.result, s.err
}

func (s *stubCheckoutService) InitiateAnonymous(ctx context.Context, videoID string) (*checkoutsvc.Result, error) {
	s.anonVideo = videoID
	return s.result, s.err
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	purchaseID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		PurchaseID: purchaseID,
		URL:        "https://checkout.stripe.com/c/pay/cs_1",
	}}
	handler := Checkout(svc, nil)

	body := `{"user_id":"user-1","video_id":"vid-1","site":"MAIN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastInput.UserID != "user-1" || svc.lastInput.VideoID != "vid-1" || svc.lastInput.Site != "MAIN" {
		t.Fatalf("unexpected input passed to service: %+v", svc.lastInput)
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PurchaseID != purchaseID {
		t.Fatalf("expected purchase id %s, got %s", purchaseID, envelope.Data.PurchaseID)
	}
	if envelope.Data.CheckoutURL != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Fatalf("unexpected checkout url %q", envelope.Data.CheckoutURL)
	}
}

func TestCheckoutMissingUserID(t *testing.T) {
	t.Parallel()

	handler := Checkout(&stubCheckoutService{}, nil)

	body := `{"video_id":"vid-1","site":"MAIN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutAlreadyPurchasedConflict(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeConflict, "item already purchased")}
	handler := Checkout(svc, nil)

	body := `{"user_id":"user-1","video_id":"vid-1","site":"MAIN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutTelegram(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		PurchaseID: uuid.New(),
		URL:        "https://checkout.stripe.com/c/pay/cs_tg",
	}}
	handler := CheckoutTelegram(svc, nil)

	body := `{"video_id":"vid-9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/internal/v1/checkout/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.anonVideo != "vid-9" {
		t.Fatalf("expected video id forwarded, got %q", svc.anonVideo)
	}
}
