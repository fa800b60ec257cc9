package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	purchasesvc "github.com/clipgate/clipgate-backend/internal/purchases"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
)

type stubPurchaseService struct {
	videoIDs  []string
	accessErr error

	rows      []models.Purchase
	next      *pagination.Cursor
	lastQuery purchasesvc.ListQuery
}

func (s *stubPurchaseService) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubPurchaseService) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubPurchaseService) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubPurchaseService) MarkPaid(ctx context.Context, purchaseID uuid.UUID, email *string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubPurchaseService) MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error) {
	return nil, false, nil
}

func (s *stubPurchaseService) CheckAccess(ctx context.Context, token string) ([]string, error) {
	if s.accessErr != nil {
		return nil, s.accessErr
	}
	return s.videoIDs, nil
}

func (s *stubPurchaseService) List(ctx context.Context, params purchasesvc.ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	s.lastQuery = params
	return s.rows, s.next, nil
}

func TestCheckPurchaseSuccess(t *testing.T) {
	t.Parallel()

	svc := &stubPurchaseService{videoIDs: []string{"vid-1", "vid-2"}}
	handler := CheckPurchase(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/v1/check-purchase", strings.NewReader(`{"token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data checkPurchaseResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Success {
		t.Fatalf("expected success true")
	}
	if len(envelope.Data.VideoIDs) != 2 || envelope.Data.VideoIDs[0] != "vid-1" {
		t.Fatalf("unexpected video ids %v", envelope.Data.VideoIDs)
	}
}

func TestCheckPurchaseUnknownToken(t *testing.T) {
	t.Parallel()

	svc := &stubPurchaseService{accessErr: pkgerrors.New(pkgerrors.CodeNotFound, "no purchase for token")}
	handler := CheckPurchase(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/v1/check-purchase", strings.NewReader(`{"token":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCheckPurchaseMissingToken(t *testing.T) {
	t.Parallel()

	handler := CheckPurchase(&stubPurchaseService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/v1/check-purchase", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestListPurchasesFiltersAndCursor(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	next := &pagination.Cursor{CreatedAt: created, ID: uuid.New()}
	svc := &stubPurchaseService{
		rows: []models.Purchase{{
			ID:          uuid.New(),
			UserID:      "user-1",
			Type:        enums.PurchaseTypeVideo,
			Status:      enums.PurchaseStatusPaid,
			AmountCents: 750,
			Site:        "MAIN",
			CreatedAt:   created,
		}},
		next: next,
	}
	handler := ListPurchases(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/internal/v1/purchases?user_id=user-1&status=paid&limit=10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastQuery.UserID == nil || *svc.lastQuery.UserID != "user-1" {
		t.Fatalf("expected user filter forwarded, got %+v", svc.lastQuery)
	}
	if svc.lastQuery.Status == nil || *svc.lastQuery.Status != enums.PurchaseStatusPaid {
		t.Fatalf("expected status filter forwarded, got %+v", svc.lastQuery)
	}
	if svc.lastQuery.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", svc.lastQuery.Limit)
	}

	var envelope struct {
		Data listPurchasesResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Purchases) != 1 {
		t.Fatalf("expected one purchase, got %d", len(envelope.Data.Purchases))
	}
	if envelope.Data.NextCursor == nil || *envelope.Data.NextCursor != pagination.EncodeCursor(*next) {
		t.Fatalf("expected next cursor %q, got %v", pagination.EncodeCursor(*next), envelope.Data.NextCursor)
	}
}

func TestListPurchasesRejectsBadStatus(t *testing.T) {
	t.Parallel()

	handler := ListPurchases(&stubPurchaseService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/internal/v1/purchases?status=refunded", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}
