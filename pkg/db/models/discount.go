package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clipgate/clipgate-backend/pkg/enums"
)

// Discount is a pricing rule. Exactly one of PercentOff, FixedPriceCents or
// AmountOffCents is populated depending on Kind. An empty Creators list makes
// the discount global; a non-empty list scopes it to those creators.
type Discount struct {
	ID   uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name string             `gorm:"column:name;not null"`
	Kind enums.DiscountKind `gorm:"column:kind;type:discount_kind;not null"`

	PercentOff      *float64 `gorm:"column:percent_off"`
	FixedPriceCents *int64   `gorm:"column:fixed_price_cents"`
	AmountOffCents  *int64   `gorm:"column:amount_off_cents"`

	Creators pq.StringArray `gorm:"column:creators;type:text[]"`
	Tags     pq.StringArray `gorm:"column:tags;type:text[]"`

	StartsAt time.Time `gorm:"column:starts_at;not null"`
	EndsAt   time.Time `gorm:"column:ends_at;not null"`
	Active   bool      `gorm:"column:active;not null;default:true;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGlobal reports whether the discount applies to every creator.
func (d Discount) IsGlobal() bool {
	return len(d.Creators) == 0
}

// InWindow reports whether now falls inside the validity window. The active
// flag is checked separately; both must hold for the discount to apply.
func (d Discount) InWindow(now time.Time) bool {
	return !d.StartsAt.After(now) && !d.EndsAt.Before(now)
}
