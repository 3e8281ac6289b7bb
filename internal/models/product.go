package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product.CurrentStock is only written by the inventory bookkeeping; it must equal the
// sum of the product's InventoryMovement quantities.
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string          `gorm:"size:150;not null" json:"name"`
	Unit         string          `gorm:"size:20;not null" json:"unit"` // und, kg, caja...
	Category     string          `gorm:"size:80;index" json:"category"`
	MinStock     float64         `gorm:"not null" json:"min_stock"`
	CurrentStock float64         `gorm:"not null" json:"current_stock"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_cost"`
	Active       bool            `gorm:"not null" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p Product) IsLowStock() bool {
	return p.CurrentStock <= p.MinStock
}
