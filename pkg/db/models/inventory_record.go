package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks the available count per product. The column is only
// ever mutated through the ledger's conditional reserve/release statements.
type InventoryRecord struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey" json:"product_id"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0" json:"available_qty"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
