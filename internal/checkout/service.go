package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clipgate/clipgate-backend/internal/catalog"
	"github.com/clipgate/clipgate-backend/internal/pricing"
	"github.com/clipgate/clipgate-backend/internal/purchases"
	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
	"github.com/clipgate/clipgate-backend/pkg/stripe"
)

const (
	anonTelegramPrefix = "tg_anon_"
	telegramSite       = "TG"
	postCheckoutPath   = "/api/v1/post-checkout?session_id={CHECKOUT_SESSION_ID}"
)

// Input is a checkout initiation request. Exactly one of VideoID or BundleID
// must be set.
type Input struct {
	UserID   string
	VideoID  string
	BundleID string
	Site     string
}

// Result carries the hosted payment page for the buyer.
type Result struct {
	PurchaseID uuid.UUID
	URL        string
}

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service orchestrates checkout initiation.
type Service interface {
	Initiate(ctx context.Context, input Input) (*Result, error)
	InitiateAnonymous(ctx context.Context, videoID string) (*Result, error)
}

type service struct {
	repo     purchases.Repository
	pricing  pricing.Service
	catalog  catalog.Client
	sessions sessionCreator
	sites    config.SitesConfig
	logg     *logger.Logger
	payments *metrics.PaymentMetrics
}

// NewService builds the checkout service.
func NewService(
	repo purchases.Repository,
	pricingSvc pricing.Service,
	catalogClient catalog.Client,
	sessions sessionCreator,
	sites config.SitesConfig,
	logg *logger.Logger,
	payments *metrics.PaymentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if catalogClient == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session creator required")
	}
	return &service{
		repo:     repo,
		pricing:  pricingSvc,
		catalog:  catalogClient,
		sessions: sessions,
		sites:    sites,
		logg:     logg,
		payments: payments,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.BundleID != "" {
		return s.initiateBundle(ctx, input)
	}
	return s.initiateVideo(ctx, input)
}

// InitiateAnonymous opens a checkout for a Telegram-origin buyer with no
// account. A synthetic buyer id keeps the ledger invariants intact.
func (s *service) InitiateAnonymous(ctx context.Context, videoID string) (*Result, error) {
	return s.Initiate(ctx, Input{
		UserID:  anonTelegramPrefix + uuid.NewString(),
		VideoID: videoID,
		Site:    telegramSite,
	})
}

func (s *service) initiateVideo(ctx context.Context, input Input) (*Result, error) {
	if err := s.rejectAlreadyPaid(ctx, input.UserID, enums.PurchaseTypeVideo, input.VideoID); err != nil {
		return nil, err
	}

	video, err := s.catalog.Video(ctx, input.VideoID)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Resolve(ctx, video.BasePriceCents, video.CreatorName)
	if err != nil {
		return nil, err
	}

	pending := &models.Purchase{
		UserID:          input.UserID,
		Type:            enums.PurchaseTypeVideo,
		VideoID:         &video.ID,
		VideoTitle:      optional(video.Title),
		BasePriceCents:  quote.BasePriceCents,
		FinalPriceCents: quote.FinalPriceCents,
		AmountCents:     quote.FinalPriceCents,
		Status:          enums.PurchaseStatusPending,
		Site:            input.Site,
	}
	pending.CreatorName = optional(video.CreatorName)
	pending.CreatorTelegramID = optional(video.CreatorTelegramID)
	pending.CreatorURL = optional(video.CreatorURL)
	applyDiscount(pending, quote)

	return s.openSession(ctx, pending, input)
}

func (s *service) initiateBundle(ctx context.Context, input Input) (*Result, error) {
	if err := s.rejectAlreadyPaid(ctx, input.UserID, enums.PurchaseTypeBundle, input.BundleID); err != nil {
		return nil, err
	}

	bundle, err := s.catalog.Bundle(ctx, input.BundleID)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Resolve(ctx, bundle.BasePriceCents, bundle.CreatorName)
	if err != nil {
		return nil, err
	}

	pending := &models.Purchase{
		UserID:           input.UserID,
		Type:             enums.PurchaseTypeBundle,
		BundleID:         &bundle.ID,
		VideoTitle:       optional(bundle.Title),
		UnlockedVideoIDs: pq.StringArray(bundle.VideoIDs),
		CreatorName:      optional(bundle.CreatorName),
		BasePriceCents:   quote.BasePriceCents,
		FinalPriceCents:  quote.FinalPriceCents,
		AmountCents:      quote.FinalPriceCents,
		Status:           enums.PurchaseStatusPending,
		Site:             input.Site,
	}
	applyDiscount(pending, quote)

	return s.openSession(ctx, pending, input)
}

// openSession finds or creates the pending ledger row, opens a Stripe
// session priced from the row's snapshot, and attaches the session id. A
// session failure leaves the pending row for reuse on retry.
func (s *service) openSession(ctx context.Context, pending *models.Purchase, input Input) (*Result, error) {
	row, created, err := s.repo.FindOrCreatePending(ctx, pending)
	if err != nil {
		return nil, err
	}
	if row.Status == enums.PurchaseStatusPaid {
		return nil, alreadyPurchased(row)
	}
	if created {
		s.payments.IncCheckoutStarted(string(row.Type))
	}

	// The generic product name is deliberate: titles never leave for the
	// payment provider's systems.
	session, err := s.sessions.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		AmountCents: row.AmountCents,
		SuccessURL:  s.sites.APIBaseURL + postCheckoutPath,
		CancelURL:   s.sites.APIBaseURL + s.sites.CancelPath,
		Metadata: map[string]any{
			"purchase_id": row.ID,
			"user_id":     row.UserID,
			"type":        string(row.Type),
			"item_id":     row.ItemID(),
			"site":        row.Site,
		},
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithPurchaseID(ctx, row.ID.String()), "checkout session creation failed, pending row retained")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating checkout session")
	}

	if err := s.repo.AttachSessionID(ctx, row.ID, session.ID); err != nil {
		return nil, err
	}

	return &Result{PurchaseID: row.ID, URL: session.URL}, nil
}

func (s *service) rejectAlreadyPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) error {
	paid, err := s.repo.FindPaid(ctx, userID, purchaseType, itemID)
	if err != nil {
		return err
	}
	if paid != nil {
		return alreadyPurchased(paid)
	}
	return nil
}

func alreadyPurchased(purchase *models.Purchase) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "item already purchased").WithDetails(map[string]any{
		"already_purchased": true,
		"item_id":           purchase.ItemID(),
		"type":              string(purchase.Type),
	})
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.Site) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "site required")
	}
	hasVideo := strings.TrimSpace(input.VideoID) != ""
	hasBundle := strings.TrimSpace(input.BundleID) != ""
	if hasVideo == hasBundle {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of video_id or bundle_id required")
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func applyDiscount(purchase *models.Purchase, quote *pricing.Quote) {
	if quote.Applied == nil {
		return
	}
	purchase.DiscountID = optional(quote.Applied.ID)
	purchase.DiscountLabel = optional(quote.Applied.Label)
}
