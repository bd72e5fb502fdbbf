package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// Order is the mutable order header. Total is fixed at creation time from the
// line snapshots and never recomputed from the catalog.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	ShippingAddress string            `gorm:"column:shipping_address;not null" json:"shipping_address"`
	ShippingCity    *string           `gorm:"column:shipping_city" json:"shipping_city,omitempty"`
	ContactPhone    *string           `gorm:"column:contact_phone" json:"contact_phone,omitempty"`
	// StockReserved is false once a rejected payment (or cancellation) has
	// returned the order's reservations to the ledger.
	StockReserved bool        `gorm:"column:stock_reserved;not null;default:true" json:"stock_reserved"`
	Lines         []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
