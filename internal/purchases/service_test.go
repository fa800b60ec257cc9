package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
)

type stubRepo struct {
	byToken      *models.Purchase
	markPaid     []MarkPaidParams
	markForEvent []string
	applied      bool
	result       *models.Purchase
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindOrCreatePending(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error) {
	return purchase, true, nil
}

func (s *stubRepo) AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.result, nil
}

func (s *stubRepo) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return s.result, nil
}

func (s *stubRepo) FindByAccessToken(ctx context.Context, token string) (*models.Purchase, error) {
	return s.byToken, nil
}

func (s *stubRepo) MarkPaid(ctx context.Context, params MarkPaidParams) (*models.Purchase, error) {
	s.markPaid = append(s.markPaid, params)
	return s.result, nil
}

func (s *stubRepo) MarkPaidForEvent(ctx context.Context, params MarkPaidParams, eventID string) (*models.Purchase, bool, error) {
	s.markPaid = append(s.markPaid, params)
	s.markForEvent = append(s.markForEvent, eventID)
	return s.result, s.applied, nil
}

func (s *stubRepo) List(ctx context.Context, params ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	return nil, nil, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, 72*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewService(&stubRepo{}, 0)
	assert.Error(t, err)
}

func TestMarkPaidMintsToken(t *testing.T) {
	repo := &stubRepo{result: &models.Purchase{}}
	svc := newTestService(t, repo)

	email := "buyer@example.com"
	_, err := svc.MarkPaid(context.Background(), uuid.New(), &email)
	require.NoError(t, err)

	require.Len(t, repo.markPaid, 1)
	params := repo.markPaid[0]
	assert.Len(t, params.AccessToken, 64) // 32 random bytes hex-encoded
	assert.False(t, params.TokenExpiresAt.IsZero())
	assert.False(t, params.PaidAt.IsZero())
	require.NotNil(t, params.Email)
	assert.Equal(t, email, *params.Email)
}

func TestMarkPaidRequiresID(t *testing.T) {
	svc := newTestService(t, &stubRepo{})

	_, err := svc.MarkPaid(context.Background(), uuid.Nil, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestMarkPaidForEventPassesEventID(t *testing.T) {
	repo := &stubRepo{result: &models.Purchase{}, applied: true}
	svc := newTestService(t, repo)

	_, applied, err := svc.MarkPaidForEvent(context.Background(), uuid.New(), "evt_123", nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"evt_123"}, repo.markForEvent)

	_, _, err = svc.MarkPaidForEvent(context.Background(), uuid.New(), "", nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCheckAccess(t *testing.T) {
	videoID := "vid_1"
	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	t.Run("unlocks single video", func(t *testing.T) {
		repo := &stubRepo{byToken: &models.Purchase{
			Status:               enums.PurchaseStatusPaid,
			VideoID:              &videoID,
			AccessTokenExpiresAt: &future,
		}}
		svc := newTestService(t, repo)

		ids, err := svc.CheckAccess(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{videoID}, ids)
	})

	t.Run("unlocks bundle set", func(t *testing.T) {
		repo := &stubRepo{byToken: &models.Purchase{
			Status:               enums.PurchaseStatusPaid,
			Type:                 enums.PurchaseTypeBundle,
			UnlockedVideoIDs:     pq.StringArray{"a", "b"},
			AccessTokenExpiresAt: &future,
		}}
		svc := newTestService(t, repo)

		ids, err := svc.CheckAccess(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		svc := newTestService(t, &stubRepo{})

		_, err := svc.CheckAccess(context.Background(), "tok")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	})

	t.Run("rejects pending purchase", func(t *testing.T) {
		repo := &stubRepo{byToken: &models.Purchase{Status: enums.PurchaseStatusPending}}
		svc := newTestService(t, repo)

		_, err := svc.CheckAccess(context.Background(), "tok")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	})

	t.Run("rejects expired token", func(t *testing.T) {
		repo := &stubRepo{byToken: &models.Purchase{
			Status:               enums.PurchaseStatusPaid,
			VideoID:              &videoID,
			AccessTokenExpiresAt: &past,
		}}
		svc := newTestService(t, repo)

		_, err := svc.CheckAccess(context.Background(), "tok")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	})

	t.Run("rejects empty token", func(t *testing.T) {
		svc := newTestService(t, &stubRepo{})

		_, err := svc.CheckAccess(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})
}
