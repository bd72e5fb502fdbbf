package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
)

// Repository manages persistence for inventory records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error)
	List(ctx context.Context) ([]models.InventoryRecord, error)
	Create(ctx context.Context, record *models.InventoryRecord) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) List(ctx context.Context) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	if err := r.db.WithContext(ctx).
		Order("product_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) Create(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}
