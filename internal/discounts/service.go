package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
)

// Service owns discount CRUD and the active-summary view.
type Service interface {
	Create(ctx context.Context, input Input) (*models.Discount, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*models.Discount, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	List(ctx context.Context) ([]models.Discount, error)
	ActiveSummary(ctx context.Context) (*ActiveSummary, error)
}

// Input carries create/update fields for a discount.
type Input struct {
	Name            string
	Kind            enums.DiscountKind
	PercentOff      *float64
	FixedPriceCents *int64
	AmountOffCents  *int64
	Creators        []string
	Tags            []string
	StartsAt        time.Time
	EndsAt          time.Time
	Active          bool
}

// ActiveSummary is the strongest currently-running discount globally and per
// creator. Strength here follows the public site's convention of comparing
// percent-off values.
type ActiveSummary struct {
	Global   *SummaryEntry           `json:"global"`
	Creators map[string]SummaryEntry `json:"creators"`
}

// SummaryEntry is one discount in the active summary.
type SummaryEntry struct {
	Name       string             `json:"name"`
	Kind       enums.DiscountKind `json:"kind"`
	PercentOff float64            `json:"percent_off,omitempty"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the discount service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input Input) (*models.Discount, error) {
	discount, err := s.fromInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByName(ctx, discount.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a discount with this name already exists")
	}

	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*models.Discount, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount id required")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}

	updated, err := s.fromInput(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount id required")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount id required")
	}
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if discount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}
	return discount, nil
}

func (s *service) List(ctx context.Context) ([]models.Discount, error) {
	return s.repo.List(ctx)
}

func (s *service) ActiveSummary(ctx context.Context) (*ActiveSummary, error) {
	active, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}

	summary := &ActiveSummary{Creators: map[string]SummaryEntry{}}
	for _, d := range active {
		entry := SummaryEntry{Name: d.Name, Kind: d.Kind}
		if d.PercentOff != nil {
			entry.PercentOff = *d.PercentOff
		}

		if d.IsGlobal() {
			if summary.Global == nil || entry.PercentOff > summary.Global.PercentOff {
				g := entry
				summary.Global = &g
			}
			continue
		}

		for _, creator := range d.Creators {
			key := strings.ToLower(strings.TrimSpace(creator))
			if key == "" {
				continue
			}
			if existing, ok := summary.Creators[key]; !ok || entry.PercentOff > existing.PercentOff {
				summary.Creators[key] = entry
			}
		}
	}
	return summary, nil
}

func (s *service) fromInput(input Input) (*models.Discount, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	switch input.Kind {
	case enums.DiscountKindPercentage:
		if input.PercentOff == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent_off is required for percentage discounts")
		}
		if *input.PercentOff <= 0 || *input.PercentOff > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent_off must be between 0 and 100")
		}
	case enums.DiscountKindFixedPrice:
		if input.FixedPriceCents == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed_price_cents is required for fixed price discounts")
		}
		if *input.FixedPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed_price_cents must be non-negative")
		}
	case enums.DiscountKindAmountOff:
		if input.AmountOffCents == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount_off_cents is required for amount off discounts")
		}
		if *input.AmountOffCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount_off_cents must be positive")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount kind")
	}

	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starts_at and ends_at are required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}

	creators := make([]string, 0, len(input.Creators))
	for _, creator := range input.Creators {
		if trimmed := strings.TrimSpace(creator); trimmed != "" {
			creators = append(creators, trimmed)
		}
	}

	discount := &models.Discount{
		Name:     name,
		Kind:     input.Kind,
		Creators: pq.StringArray(creators),
		Tags:     pq.StringArray(input.Tags),
		StartsAt: input.StartsAt.UTC(),
		EndsAt:   input.EndsAt.UTC(),
		Active:   input.Active,
	}

	// Exactly one value field survives, matching the kind.
	switch input.Kind {
	case enums.DiscountKindPercentage:
		discount.PercentOff = input.PercentOff
	case enums.DiscountKindFixedPrice:
		discount.FixedPriceCents = input.FixedPriceCents
	case enums.DiscountKindAmountOff:
		discount.AmountOffCents = input.AmountOffCents
	}

	return discount, nil
}
