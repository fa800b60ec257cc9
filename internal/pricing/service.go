package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
)

type activeDiscountLister interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Discount, error)
}

// Quote is the outcome of resolving a listed price against the running
// discounts. Applied is nil when no discount lowers the price.
type Quote struct {
	BasePriceCents  int64
	FinalPriceCents int64
	Applied         *AppliedDiscount
}

// AppliedDiscount identifies the winning discount for the snapshot.
type AppliedDiscount struct {
	ID    string
	Label string
	Kind  enums.DiscountKind
}

// Service resolves the effective price for an item at checkout time.
type Service interface {
	Resolve(ctx context.Context, listedPriceCents int64, creatorName string) (*Quote, error)
}

type service struct {
	discounts activeDiscountLister
	now       func() time.Time
}

// NewService builds the pricing resolver.
func NewService(discounts activeDiscountLister) (Service, error) {
	if discounts == nil {
		return nil, fmt.Errorf("discount lister required")
	}
	return &service{
		discounts: discounts,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Resolve picks the single strongest applicable discount (lowest resulting
// price) and returns the final price. Discounts never stack.
func (s *service) Resolve(ctx context.Context, listedPriceCents int64, creatorName string) (*Quote, error) {
	if listedPriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listed price must be positive")
	}

	now := s.now()
	active, err := s.discounts.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		BasePriceCents:  listedPriceCents,
		FinalPriceCents: listedPriceCents,
	}

	creator := normalizeCreator(creatorName)
	for _, d := range active {
		if !d.Active || !d.InWindow(now) {
			continue
		}
		if !matchesScope(d, creator) {
			continue
		}
		candidate := apply(d, listedPriceCents)
		if candidate < quote.FinalPriceCents {
			quote.FinalPriceCents = candidate
			quote.Applied = &AppliedDiscount{
				ID:    d.ID.String(),
				Label: d.Name,
				Kind:  d.Kind,
			}
		}
	}

	return quote, nil
}

func matchesScope(d models.Discount, creator string) bool {
	if d.IsGlobal() {
		return true
	}
	if creator == "" {
		return false
	}
	for _, scoped := range d.Creators {
		if normalizeCreator(scoped) == creator {
			return true
		}
	}
	return false
}

// apply computes the discounted price in cents, rounded to the nearest cent
// and clamped at zero.
func apply(d models.Discount, priceCents int64) int64 {
	switch d.Kind {
	case enums.DiscountKindPercentage:
		if d.PercentOff == nil {
			return priceCents
		}
		price := decimal.NewFromInt(priceCents)
		factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(*d.PercentOff)).Div(decimal.NewFromInt(100))
		return clamp(price.Mul(factor).Round(0).IntPart())
	case enums.DiscountKindFixedPrice:
		if d.FixedPriceCents == nil {
			return priceCents
		}
		return clamp(*d.FixedPriceCents)
	case enums.DiscountKindAmountOff:
		if d.AmountOffCents == nil {
			return priceCents
		}
		return clamp(priceCents - *d.AmountOffCents)
	default:
		return priceCents
	}
}

func clamp(cents int64) int64 {
	if cents < 0 {
		return 0
	}
	return cents
}

func normalizeCreator(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
