package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is one product staged in a customer's cart. Unique per
// (customer, product); re-adding merges quantities. Advisory only: carrying a
// line reserves nothing.
type CartLine struct {
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;primaryKey" json:"customer_id"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey" json:"product_id"`
	Quantity   int       `gorm:"column:quantity;not null" json:"quantity"`
	AddedAt    time.Time `gorm:"column:added_at;autoCreateTime" json:"added_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
