package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// Sale is the immutable record cut when an order's payment is approved. The
// unique index on OrderID is the exactly-once guarantee: concurrent
// registrations race on the insert and later callers observe the winner.
type Sale struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID        `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_sales_order_id" json:"order_id"`
	CustomerID uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	Total      decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Status     enums.SaleStatus `gorm:"column:status;type:text;not null;default:'completed'" json:"status"`
	Lines      []SaleLine       `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (s *Sale) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
