package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// ListOrdersFilter narrows admin order listings.
type ListOrdersFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
}

// Repository manages persistence for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error)
	SetStockReservedIf(ctx context.Context, id uuid.UUID, from, to bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) List(ctx context.Context, filter ListOrdersFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Lines")
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatusIf flips the status only while the current one is in from,
// reporting how many rows moved. Zero rows means a concurrent writer got
// there first (or the order does not exist).
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// SetStockReservedIf flips the reservation flag only from the expected value,
// reporting how many rows moved. Whoever wins the flip owns the matching
// ledger release or re-reserve; losers must leave the ledger alone.
func (r *repository) SetStockReservedIf(ctx context.Context, id uuid.UUID, from, to bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_reserved = ?", id, from).
		Update("stock_reserved", to)
	return res.RowsAffected, res.Error
}
