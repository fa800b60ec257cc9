package postcheckout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clipgate/clipgate-backend/internal/purchases"
	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
	"github.com/clipgate/clipgate-backend/pkg/stripe"
)

type stubSessions struct {
	session *stripe.CheckoutSession
	err     error
}

func (s stubSessions) RetrieveSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	return s.session, s.err
}

type stubRepo struct {
	byID        *models.Purchase
	bySession   *models.Purchase
	synthesized *models.Purchase
}

func (s *stubRepo) WithTx(tx *gorm.DB) purchases.Repository { return s }

func (s *stubRepo) FindOrCreatePending(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error) {
	purchase.ID = uuid.New()
	s.synthesized = purchase
	return purchase, true, nil
}

func (s *stubRepo) AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.byID, nil
}

func (s *stubRepo) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return s.bySession, nil
}

func (s *stubRepo) FindByAccessToken(ctx context.Context, token string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubRepo) MarkPaid(ctx context.Context, params purchases.MarkPaidParams) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubRepo) MarkPaidForEvent(ctx context.Context, params purchases.MarkPaidParams, eventID string) (*models.Purchase, bool, error) {
	return nil, false, nil
}

func (s *stubRepo) List(ctx context.Context, params purchases.ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubLedger struct {
	paid    *models.Purchase
	err     error
	calls   []uuid.UUID
	emails  []*string
}

func (s *stubLedger) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubLedger) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubLedger) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	return nil, nil
}

func (s *stubLedger) MarkPaid(ctx context.Context, purchaseID uuid.UUID, email *string) (*models.Purchase, error) {
	s.calls = append(s.calls, purchaseID)
	s.emails = append(s.emails, email)
	if s.err != nil {
		return nil, s.err
	}
	if s.paid != nil {
		return s.paid, nil
	}
	token := "tok_abc"
	return &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPaid, AccessToken: &token, Site: "MAIN"}, nil
}

func (s *stubLedger) MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error) {
	return nil, false, nil
}

func (s *stubLedger) CheckAccess(ctx context.Context, token string) ([]string, error) {
	return nil, nil
}

func (s *stubLedger) List(ctx context.Context, params purchases.ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	return nil, nil, nil
}

func testSites(t *testing.T) config.SitesConfig {
	t.Helper()
	sites := config.SitesConfig{
		Map:               "MAIN=https://main.example.com,TG=https://tg.example.com",
		DefaultSuccessURL: "https://main.example.com/thanks",
	}
	require.NoError(t, sites.Parse())
	return sites
}

func newService(t *testing.T, sessions stubSessions, repo *stubRepo, ledger *stubLedger) Service {
	t.Helper()
	svc, err := NewService(sessions, repo, ledger, testSites(t), nil, nil)
	require.NoError(t, err)
	return svc
}

func paidSession(meta map[string]string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: "paid",
		AmountTotal:   750,
		Metadata:      meta,
		CustomerEmail: "buyer@example.com",
	}
}

func TestConfirmRequiresSessionID(t *testing.T) {
	svc := newService(t, stubSessions{}, &stubRepo{}, &stubLedger{})

	_, err := svc.Confirm(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestConfirmHappyPath(t *testing.T) {
	videoID := "vid_1"
	row := &models.Purchase{ID: uuid.New(), Type: enums.PurchaseTypeVideo, VideoID: &videoID, Site: "MAIN"}
	token := "tok_abc"
	ledger := &stubLedger{paid: &models.Purchase{
		ID: row.ID, Type: enums.PurchaseTypeVideo, VideoID: &videoID,
		Status: enums.PurchaseStatusPaid, AccessToken: &token, Site: "MAIN",
	}}
	repo := &stubRepo{byID: row}
	svc := newService(t, stubSessions{session: paidSession(map[string]string{"purchase_id": row.ID.String()})}, repo, ledger)

	redirect, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "main.example.com", parsed.Host)
	assert.Equal(t, "/success", parsed.Path)
	assert.Equal(t, "vid_1", parsed.Query().Get("videoId"))
	assert.Equal(t, "tok_abc", parsed.Query().Get("token"))

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, row.ID, ledger.calls[0])
	require.NotNil(t, ledger.emails[0])
	assert.Equal(t, "buyer@example.com", *ledger.emails[0])
}

func TestConfirmRetrievalFailureFallsBack(t *testing.T) {
	svc := newService(t, stubSessions{err: errors.New("stripe down")}, &stubRepo{}, &stubLedger{})

	redirect, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "https://main.example.com/thanks", redirect)
}

func TestConfirmUnpaidSessionFallsBack(t *testing.T) {
	session := paidSession(nil)
	session.PaymentStatus = "unpaid"
	ledger := &stubLedger{}
	svc := newService(t, stubSessions{session: session}, &stubRepo{}, ledger)

	redirect, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "https://main.example.com/thanks", redirect)
	assert.Empty(t, ledger.calls)
}

func TestConfirmMarkPaidFailureFallsBack(t *testing.T) {
	videoID := "vid_1"
	row := &models.Purchase{ID: uuid.New(), Type: enums.PurchaseTypeVideo, VideoID: &videoID, Site: "MAIN"}
	ledger := &stubLedger{err: errors.New("db down")}
	svc := newService(t, stubSessions{session: paidSession(map[string]string{"purchase_id": row.ID.String()})}, &stubRepo{byID: row}, ledger)

	redirect, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "https://main.example.com/thanks", redirect)
}

func TestConfirmSynthesizesAnonymousRow(t *testing.T) {
	repo := &stubRepo{}
	ledger := &stubLedger{}
	session := paidSession(map[string]string{"item_id": "vid_9", "site": "MAIN"})
	svc := newService(t, stubSessions{session: session}, repo, ledger)

	_, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)

	require.NotNil(t, repo.synthesized)
	assert.True(t, strings.HasPrefix(repo.synthesized.UserID, "anon_"))
	require.NotNil(t, repo.synthesized.VideoID)
	assert.Equal(t, "vid_9", *repo.synthesized.VideoID)
	assert.Equal(t, int64(750), repo.synthesized.AmountCents)
	require.Len(t, ledger.calls, 1)
}

func TestConfirmUnknownSiteFallsBackToDefaultBase(t *testing.T) {
	videoID := "vid_1"
	row := &models.Purchase{ID: uuid.New(), Type: enums.PurchaseTypeVideo, VideoID: &videoID, Site: "NOPE"}
	token := "tok_abc"
	ledger := &stubLedger{paid: &models.Purchase{
		ID: row.ID, Type: enums.PurchaseTypeVideo, VideoID: &videoID,
		Status: enums.PurchaseStatusPaid, AccessToken: &token, Site: "NOPE",
	}}
	svc := newService(t, stubSessions{session: paidSession(map[string]string{"purchase_id": row.ID.String()})}, &stubRepo{byID: row}, ledger)

	redirect, err := svc.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect, "https://main.example.com/thanks?"))
	assert.Contains(t, redirect, "token=tok_abc")
}
