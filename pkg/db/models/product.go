package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// Product is a catalog entry. Its Price is the live catalog price; orders
// snapshot it at creation time and never read it again.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CategoryID  *uuid.UUID        `gorm:"column:category_id;type:uuid" json:"category_id,omitempty"`
	Name        string            `gorm:"column:name;not null" json:"name"`
	Description string            `gorm:"column:description" json:"description"`
	Price       decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Unit        enums.ProductUnit `gorm:"column:unit;type:text;not null;default:'kg'" json:"unit"`
	IsActive    bool              `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
