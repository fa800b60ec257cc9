package postcheckout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/clipgate/clipgate-backend/internal/purchases"
	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
	"github.com/clipgate/clipgate-backend/pkg/stripe"
)

const anonRedirectPrefix = "anon_"

type sessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// Service resolves the buyer's landing page after Stripe redirects back.
type Service interface {
	Confirm(ctx context.Context, sessionID string) (string, error)
}

type service struct {
	sessions sessionRetriever
	repo     purchases.Repository
	ledger   purchases.Service
	sites    config.SitesConfig
	logg     *logger.Logger
	payments *metrics.PaymentMetrics
}

// NewService builds the post-checkout confirmation service.
func NewService(
	sessions sessionRetriever,
	repo purchases.Repository,
	ledger purchases.Service,
	sites config.SitesConfig,
	logg *logger.Logger,
	payments *metrics.PaymentMetrics,
) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session retriever required")
	}
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("purchase service required")
	}
	return &service{
		sessions: sessions,
		repo:     repo,
		ledger:   ledger,
		sites:    sites,
		logg:     logg,
		payments: payments,
	}, nil
}

// Confirm turns a session id into the site-specific success URL. A buyer who
// reached this point has paid, so every failure past parameter validation
// degrades to the default success URL instead of an error page.
func (s *service) Confirm(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session_id required")
	}

	session, err := s.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.warn(ctx, "post-checkout session retrieval failed", err)
		return s.sites.DefaultSuccessURL, nil
	}

	if session.PaymentStatus != "" && session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
		s.warn(ctx, fmt.Sprintf("post-checkout session not paid (%s)", session.PaymentStatus), nil)
		return s.sites.DefaultSuccessURL, nil
	}

	purchase, err := s.resolvePurchase(ctx, session)
	if err != nil {
		s.warn(ctx, "post-checkout could not resolve ledger row", err)
		return s.sites.DefaultSuccessURL, nil
	}

	var email *string
	if session.CustomerEmail != "" {
		email = &session.CustomerEmail
	}
	paid, err := s.ledger.MarkPaid(ctx, purchase.ID, email)
	if err != nil {
		s.warn(ctx, "post-checkout paid transition failed", err)
		return s.sites.DefaultSuccessURL, nil
	}
	s.payments.IncConfirmation("redirect")

	return s.successURL(paid), nil
}

// resolvePurchase locates the ledger row for the session, preferring the
// purchase_id metadata, then the stored session id. A paid session with no
// row at all gets a synthesized anonymous row so the buyer still lands on
// content they paid for.
func (s *service) resolvePurchase(ctx context.Context, session *stripe.CheckoutSession) (*models.Purchase, error) {
	if raw := session.Metadata["purchase_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			purchase, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if purchase != nil {
				return purchase, nil
			}
		}
	}

	purchase, err := s.repo.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if purchase != nil {
		return purchase, nil
	}

	return s.synthesizeRow(ctx, session)
}

func (s *service) synthesizeRow(ctx context.Context, session *stripe.CheckoutSession) (*models.Purchase, error) {
	itemID := session.Metadata["item_id"]
	if itemID == "" {
		itemID = session.Metadata["video_id"]
	}
	if itemID == "" {
		return nil, fmt.Errorf("session %s has no ledger row and no item metadata", session.ID)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = anonRedirectPrefix + uuid.NewString()
	}
	site := session.Metadata["site"]
	if site == "" {
		site = "UNKNOWN"
	}

	purchase := &models.Purchase{
		UserID:          userID,
		Type:            enums.PurchaseTypeVideo,
		VideoID:         &itemID,
		BasePriceCents:  session.AmountTotal,
		FinalPriceCents: session.AmountTotal,
		AmountCents:     session.AmountTotal,
		Status:          enums.PurchaseStatusPending,
		Site:            site,
	}
	if session.Metadata["type"] == string(enums.PurchaseTypeBundle) {
		purchase.Type = enums.PurchaseTypeBundle
		purchase.VideoID = nil
		purchase.BundleID = &itemID
	}

	row, _, err := s.repo.FindOrCreatePending(ctx, purchase)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AttachSessionID(ctx, row.ID, session.ID); err != nil {
		return nil, err
	}
	s.warn(ctx, fmt.Sprintf("synthesized ledger row for paid session %s", session.ID), nil)
	return row, nil
}

func (s *service) successURL(purchase *models.Purchase) string {
	base, ok := s.sites.SiteURL(purchase.Site)
	if !ok {
		base = s.sites.DefaultSuccessURL
	} else {
		base += "/success"
	}

	params := url.Values{}
	if id := purchase.ItemID(); id != "" {
		key := "videoId"
		if purchase.Type == enums.PurchaseTypeBundle {
			key = "bundleId"
		}
		params.Set(key, id)
	}
	if purchase.AccessToken != nil && *purchase.AccessToken != "" {
		params.Set("token", *purchase.AccessToken)
	}
	if encoded := params.Encode(); encoded != "" {
		return base + "?" + encoded
	}
	return base
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"error": err.Error()})
	}
	s.logg.Warn(ctx, msg)
}
