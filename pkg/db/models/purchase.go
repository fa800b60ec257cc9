package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clipgate/clipgate-backend/pkg/enums"
)

// Purchase is the ledger row tracking one buyer's attempt/completion of
// paying for a single video or a bundle. The pricing columns are a snapshot
// taken when the pending row is created and are never recomputed afterwards.
type Purchase struct {
	ID     uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID string             `gorm:"column:user_id;not null;index"`
	Type   enums.PurchaseType `gorm:"column:type;type:purchase_type;not null"`

	VideoID          *string        `gorm:"column:video_id;index"`
	VideoTitle       *string        `gorm:"column:video_title"`
	BundleID         *string        `gorm:"column:bundle_id;index"`
	UnlockedVideoIDs pq.StringArray `gorm:"column:unlocked_video_ids;type:text[]"`

	CreatorID         *string `gorm:"column:creator_id;index"`
	CreatorName       *string `gorm:"column:creator_name"`
	CreatorTelegramID *string `gorm:"column:creator_telegram_id"`
	CreatorURL        *string `gorm:"column:creator_url"`

	BasePriceCents  int64   `gorm:"column:base_price_cents;not null"`
	FinalPriceCents int64   `gorm:"column:final_price_cents;not null"`
	AmountCents     int64   `gorm:"column:amount_cents;not null"`
	DiscountID      *string `gorm:"column:discount_id"`
	DiscountLabel   *string `gorm:"column:discount_label"`

	StripeSessionID *string              `gorm:"column:stripe_session_id;index"`
	StripeEventID   *string              `gorm:"column:stripe_event_id;index"`
	Status          enums.PurchaseStatus `gorm:"column:status;type:purchase_status;not null;default:'pending';index"`

	Email                *string    `gorm:"column:email"`
	Site                 string     `gorm:"column:site;not null"`
	AccessToken          *string    `gorm:"column:access_token;index"`
	AccessTokenExpiresAt *time.Time `gorm:"column:access_token_expires_at"`

	PaidAt    *time.Time `gorm:"column:paid_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemID returns the discriminated item reference (video or bundle id).
func (p Purchase) ItemID() string {
	switch p.Type {
	case enums.PurchaseTypeBundle:
		if p.BundleID != nil {
			return *p.BundleID
		}
	default:
		if p.VideoID != nil {
			return *p.VideoID
		}
	}
	return ""
}

// UnlockedIDs normalizes the content ids granted by this purchase: the
// bundle's unlocked set when present, otherwise the single video id.
func (p Purchase) UnlockedIDs() []string {
	if len(p.UnlockedVideoIDs) > 0 {
		return append([]string{}, p.UnlockedVideoIDs...)
	}
	if p.VideoID != nil && *p.VideoID != "" {
		return []string{*p.VideoID}
	}
	return nil
}
