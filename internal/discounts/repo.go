package discounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
)

// Repository handles discount persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, discount *models.Discount) error
	Update(ctx context.Context, discount *models.Discount) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindByName(ctx context.Context, name string) (*models.Discount, error)
	List(ctx context.Context) ([]models.Discount, error)
	ListActive(ctx context.Context, now time.Time) ([]models.Discount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discount repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *repository) Update(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Save(discount).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Discount{}, "id = ?", id).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&discount).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &discount, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.Discount, error) {
	if name == "" {
		return nil, nil
	}
	var discount models.Discount
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&discount).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &discount, nil
}

func (r *repository) List(ctx context.Context) ([]models.Discount, error) {
	var rows []models.Discount
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive returns active discounts whose validity window contains now.
func (r *repository) ListActive(ctx context.Context, now time.Time) ([]models.Discount, error) {
	var rows []models.Discount
	if err := r.db.WithContext(ctx).
		Where("active = true AND starts_at <= ? AND ends_at >= ?", now, now).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
