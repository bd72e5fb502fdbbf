package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// ListSalesFilter narrows admin sale listings.
type ListSalesFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.SaleStatus
	From       *time.Time
	To         *time.Time
}

// Repository manages persistence for sales and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Sale, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Sale, error)
	List(ctx context.Context, filter ListSalesFilter) ([]models.Sale, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&sale, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Sale, error) {
	var sales []models.Sale
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repository) List(ctx context.Context, filter ListSalesFilter) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).Preload("Lines")
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var sales []models.Sale
	if err := query.Order("created_at DESC").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
