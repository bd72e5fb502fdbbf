package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
)

// Repository manages persistence for cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, line *models.CartLine) error
	Get(ctx context.Context, customerID, productID uuid.UUID) (*models.CartLine, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartLine, error)
	Delete(ctx context.Context, customerID, productID uuid.UUID) (int64, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the line or merges its quantity into the existing one for
// the same (customer, product) pair.
func (r *repository) Upsert(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_lines.quantity + excluded.quantity"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(line).Error
}

func (r *repository) Get(ctx context.Context, customerID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	if err := r.db.WithContext(ctx).
		First(&line, "customer_id = ? AND product_id = ?", customerID, productID).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("added_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) Delete(ctx context.Context, customerID, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", customerID, productID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

func (r *repository) Clear(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&models.CartLine{}).Error
}
