package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// Payment records one authorization attempt against an order. Amount always
// equals the order total at the time of the attempt.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Method         enums.PaymentMethod `gorm:"column:method;type:text;not null" json:"method"`
	Status         enums.PaymentStatus `gorm:"column:status;type:text;not null" json:"status"`
	TransactionRef string              `gorm:"column:transaction_ref;not null" json:"transaction_ref"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
