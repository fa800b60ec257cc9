package purchases

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
)

const accessTokenBytes = 32

// Service owns ledger-level operations shared by both confirmation paths.
type Service interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, purchaseID uuid.UUID, email *string) (*models.Purchase, error)
	MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error)
	CheckAccess(ctx context.Context, token string) ([]string, error)
	List(ctx context.Context, params ListQuery) ([]models.Purchase, *pagination.Cursor, error)
}

type service struct {
	repo     Repository
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService builds the purchase ledger service.
func NewService(repo Repository, tokenTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &service{
		repo:     repo,
		tokenTTL: tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return s.repo.FindBySessionID(ctx, sessionID)
}

func (s *service) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	return s.repo.FindPaid(ctx, userID, purchaseType, itemID)
}

// MarkPaid transitions the row to paid from the redirect path. A fresh token
// is minted on every call but only lands when the row has none yet.
func (s *service) MarkPaid(ctx context.Context, purchaseID uuid.UUID, email *string) (*models.Purchase, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	params, err := s.paidParams(purchaseID, email)
	if err != nil {
		return nil, err
	}
	return s.repo.MarkPaid(ctx, params)
}

// MarkPaidForEvent is the webhook-path transition. The bool reports whether
// the event id was newly applied; replays return false.
func (s *service) MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error) {
	if purchaseID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if eventID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	params, err := s.paidParams(purchaseID, email)
	if err != nil {
		return nil, false, err
	}
	return s.repo.MarkPaidForEvent(ctx, params, eventID)
}

func (s *service) paidParams(purchaseID uuid.UUID, email *string) (MarkPaidParams, error) {
	token, err := mintAccessToken()
	if err != nil {
		return MarkPaidParams{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	now := s.now()
	return MarkPaidParams{
		ID:             purchaseID,
		Email:          email,
		AccessToken:    token,
		TokenExpiresAt: now.Add(s.tokenTTL),
		PaidAt:         now,
	}, nil
}

// CheckAccess resolves an access token to the content ids it unlocks.
func (s *service) CheckAccess(ctx context.Context, token string) ([]string, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token required")
	}
	purchase, err := s.repo.FindByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if purchase == nil || purchase.Status != enums.PurchaseStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no purchase for token")
	}
	if purchase.AccessTokenExpiresAt != nil && purchase.AccessTokenExpiresAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token expired")
	}
	return purchase.UnlockedIDs(), nil
}

func (s *service) List(ctx context.Context, params ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	return s.repo.List(ctx, params)
}

func mintAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
