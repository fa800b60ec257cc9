package purchases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipgate/clipgate-backend/pkg/db"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
)

// Repository handles purchase ledger persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrCreatePending(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error)
	AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	FindByAccessToken(ctx context.Context, token string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, params MarkPaidParams) (*models.Purchase, error)
	MarkPaidForEvent(ctx context.Context, params MarkPaidParams, eventID string) (*models.Purchase, bool, error)
	List(ctx context.Context, params ListQuery) ([]models.Purchase, *pagination.Cursor, error)
}

// MarkPaidParams carries the paid transition fields. Token and expiry are
// applied only when the row does not already carry a token, so the webhook
// and redirect paths converge on a single token.
type MarkPaidParams struct {
	ID             uuid.UUID
	Email          *string
	AccessToken    string
	TokenExpiresAt time.Time
	PaidAt         time.Time
}

// ListQuery configures ledger list queries.
type ListQuery struct {
	UserID *string
	Status *enums.PurchaseStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindOrCreatePending returns the existing ledger row for the buyer/item pair
// or creates a fresh pending one. A unique-violation race resolves by
// re-reading the winner's row.
func (r *repository) FindOrCreatePending(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error) {
	existing, err := r.findByItem(ctx, purchase.UserID, purchase.Type, purchase.ItemID())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			winner, findErr := r.findByItem(ctx, purchase.UserID, purchase.Type, purchase.ItemID())
			if findErr != nil {
				return nil, false, findErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}
	return purchase, true, nil
}

func (r *repository) findByItem(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	if userID == "" || itemID == "" {
		return nil, nil
	}
	column := "video_id"
	if purchaseType == enums.PurchaseTypeBundle {
		column = "bundle_id"
	}
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND "+column+" = ?", userID, itemID).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) AttachSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Update("stripe_session_id", sessionID).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindPaid(ctx context.Context, userID string, purchaseType enums.PurchaseType, itemID string) (*models.Purchase, error) {
	existing, err := r.findByItem(ctx, userID, purchaseType, itemID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != enums.PurchaseStatusPaid {
		return nil, nil
	}
	return existing, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByAccessToken(ctx context.Context, token string) (*models.Purchase, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		Where("access_token = ?", token).
		First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// MarkPaid applies the paid transition as a single set-style update. Already
// paid rows keep their paid_at, email and token; only missing fields are
// filled, which makes the call safe to repeat from either confirmation path.
func (r *repository) MarkPaid(ctx context.Context, params MarkPaidParams) (*models.Purchase, error) {
	if err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", params.ID).
		Updates(paidUpdates(params)).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, params.ID)
}

// MarkPaidForEvent is MarkPaid plus event-id duplicate suppression: the
// update only matches when the row has not already recorded this event id.
// The bool reports whether this call newly applied the event.
func (r *repository) MarkPaidForEvent(ctx context.Context, params MarkPaidParams, eventID string) (*models.Purchase, bool, error) {
	updates := paidUpdates(params)
	updates["stripe_event_id"] = eventID

	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND (stripe_event_id IS NULL OR stripe_event_id <> ?)", params.ID, eventID).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}

	purchase, err := r.FindByID(ctx, params.ID)
	if err != nil {
		return nil, false, err
	}
	return purchase, result.RowsAffected > 0, nil
}

func paidUpdates(params MarkPaidParams) map[string]any {
	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	updates := map[string]any{
		"status":                  enums.PurchaseStatusPaid,
		"paid_at":                 gorm.Expr("COALESCE(paid_at, ?)", paidAt),
		"access_token":            gorm.Expr("COALESCE(access_token, ?)", params.AccessToken),
		"access_token_expires_at": gorm.Expr("COALESCE(access_token_expires_at, ?)", params.TokenExpiresAt),
	}
	if params.Email != nil && *params.Email != "" {
		updates["email"] = gorm.Expr("COALESCE(email, ?)", *params.Email)
	}
	return updates
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Purchase{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Purchase
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > limit {
		next := rows[limit]
		rows = rows[:limit]
		return rows, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return rows, nil, nil
}
