package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
)

type purchaseLedger interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	MarkPaidForEvent(ctx context.Context, purchaseID uuid.UUID, eventID string, email *string) (*models.Purchase, bool, error)
}

type saleNotifier interface {
	NotifySale(ctx context.Context, purchase *models.Purchase) error
}

type ServiceParams struct {
	Ledger   purchaseLedger
	Notifier saleNotifier
	Logger   *logger.Logger
	Payments *metrics.PaymentMetrics
}

type Service struct {
	ledger   purchaseLedger
	notifier saleNotifier
	logg     *logger.Logger
	payments *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase ledger required")
	}
	return &Service{
		ledger:   params.Ledger,
		notifier: params.Notifier,
		logg:     params.Logger,
		payments: params.Payments,
	}, nil
}

// HandleEvent applies a verified Stripe event to the ledger. Only
// checkout.session.completed mutates anything; every other kind is
// acknowledged so Stripe stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}

	purchase, err := s.resolvePurchase(ctx, &session)
	if err != nil {
		return err
	}

	var email *string
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = &session.CustomerDetails.Email
	}

	paid, applied, err := s.ledger.MarkPaidForEvent(ctx, purchase.ID, event.ID, email)
	if err != nil {
		return err
	}
	if !applied {
		s.payments.IncDuplicateEvent()
		if s.logg != nil {
			s.logg.Info(s.logg.WithPurchaseID(ctx, purchase.ID.String()), "duplicate stripe event suppressed")
		}
		return nil
	}
	s.payments.IncConfirmation("webhook")

	// Fan-out is best effort. A notification failure never bounces the
	// webhook back to Stripe.
	if s.notifier != nil {
		if err := s.notifier.NotifySale(ctx, paid); err != nil && s.logg != nil {
			ctx := s.logg.WithPurchaseID(ctx, purchase.ID.String())
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error": err.Error()}), "sale notification failed")
		}
	}

	return nil
}

func (s *Service) resolvePurchase(ctx context.Context, session *stripe.CheckoutSession) (*models.Purchase, error) {
	if raw := session.Metadata["purchase_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			purchase, err := s.ledger.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if purchase != nil {
				return purchase, nil
			}
		}
	}

	purchase, err := s.ledger.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no ledger row for completed session")
	}
	return purchase, nil
}
