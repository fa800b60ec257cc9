package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
)

type stubLedger struct {
	byID      *models.Purchase
	bySession *models.Purchase
	applied   bool
	paid      *models.Purchase
	events    []string
	emails    []*string
}

func (s *stubLedger) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return s.byID, nil
}

func (s *stubLedger) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return s.bySession, nil
}

func (s *stubLedger) MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error) {
	s.events = append(s.events, eventID)
	s.emails = append(s.emails, email)
	return s.paid, s.applied, nil
}

type stubNotifier struct {
	calls []*models.Purchase
	err   error
}

func (s *stubNotifier) NotifySale(ctx context.Context, purchase *models.Purchase) error {
	s.calls = append(s.calls, purchase)
	return s.err
}

func completedEvent(t *testing.T, eventID string, session stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   eventID,
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventIgnoresOtherKinds(t *testing.T) {
	ledger := &stubLedger{}
	svc, err := NewService(ServiceParams{Ledger: ledger})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{},
	})
	require.NoError(t, err)
	assert.Empty(t, ledger.events)
}

func TestHandleEventAppliesCompletedSession(t *testing.T) {
	purchaseID := uuid.New()
	row := &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPending}
	paid := &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPaid}
	ledger := &stubLedger{byID: row, applied: true, paid: paid}
	notifier := &stubNotifier{}
	svc, err := NewService(ServiceParams{Ledger: ledger, Notifier: notifier})
	require.NoError(t, err)

	event := completedEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"purchase_id": purchaseID.String()},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Email: "buyer@example.com",
		},
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Equal(t, []string{"evt_1"}, ledger.events)
	require.Len(t, ledger.emails, 1)
	require.NotNil(t, ledger.emails[0])
	assert.Equal(t, "buyer@example.com", *ledger.emails[0])

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, paid, notifier.calls[0])
}

func TestHandleEventDuplicateSuppressed(t *testing.T) {
	purchaseID := uuid.New()
	ledger := &stubLedger{
		byID:    &models.Purchase{ID: purchaseID},
		applied: false,
		paid:    &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPaid},
	}
	notifier := &stubNotifier{}
	svc, err := NewService(ServiceParams{Ledger: ledger, Notifier: notifier})
	require.NoError(t, err)

	event := completedEvent(t, "evt_dup", stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"purchase_id": purchaseID.String()},
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, notifier.calls) // replays never re-notify
}

func TestHandleEventNotifierFailureSwallowed(t *testing.T) {
	purchaseID := uuid.New()
	ledger := &stubLedger{
		byID:    &models.Purchase{ID: purchaseID},
		applied: true,
		paid:    &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPaid},
	}
	notifier := &stubNotifier{err: errors.New("telegram down")}
	svc, err := NewService(ServiceParams{Ledger: ledger, Notifier: notifier})
	require.NoError(t, err)

	event := completedEvent(t, "evt_1", stripe.CheckoutSession{
		ID:       "cs_1",
		Metadata: map[string]string{"purchase_id": purchaseID.String()},
	})

	assert.NoError(t, svc.HandleEvent(context.Background(), event))
}

func TestHandleEventFallsBackToSessionLookup(t *testing.T) {
	purchaseID := uuid.New()
	ledger := &stubLedger{
		bySession: &models.Purchase{ID: purchaseID},
		applied:   true,
		paid:      &models.Purchase{ID: purchaseID, Status: enums.PurchaseStatusPaid},
	}
	svc, err := NewService(ServiceParams{Ledger: ledger})
	require.NoError(t, err)

	event := completedEvent(t, "evt_1", stripe.CheckoutSession{ID: "cs_1"})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Equal(t, []string{"evt_1"}, ledger.events)
}

func TestHandleEventNoLedgerRow(t *testing.T) {
	svc, err := NewService(ServiceParams{Ledger: &stubLedger{}})
	require.NoError(t, err)

	event := completedEvent(t, "evt_1", stripe.CheckoutSession{ID: "cs_unknown"})
	err = svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

type stubStore struct {
	existing map[string]bool
	deleted  []string
	err      error
}

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.existing == nil {
		s.existing = map[string]bool{}
	}
	if s.existing[key] {
		return false, nil
	}
	s.existing[key] = true
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "cg:idempotency:" + scope + ":" + id
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &stubStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(context.Background(), "evt_1"))
	assert.Equal(t, []string{"cg:idempotency:stripe:evt_1"}, store.deleted)
}

func TestIdempotencyGuardErrors(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "stripe")
	assert.Error(t, err)

	guard, err := NewIdempotencyGuard(&stubStore{err: errors.New("redis down")}, time.Hour, "stripe")
	require.NoError(t, err)

	_, err = guard.CheckAndMark(context.Background(), "evt_1")
	assert.Error(t, err)

	_, err = guard.CheckAndMark(context.Background(), "")
	assert.Error(t, err)
}
