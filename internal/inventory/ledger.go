package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

// Reserve decrements the available count for a product inside the caller's
// transaction. The decrement is guarded: it only applies while enough stock
// remains, so two competing reservations can never drive the count negative.
func Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_records
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var record models.InventoryRecord
	err := tx.WithContext(ctx).First(&record, "product_id = ?", productID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}
	return pkgerrors.InsufficientStock(productID.String(), qty, record.AvailableQty)
}

// Release returns previously reserved stock to the available pool.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_records
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	return nil
}
