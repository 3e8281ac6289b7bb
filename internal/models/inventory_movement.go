package models

import "time"

type MovementType string

const (
	MovementReception  MovementType = "reception"
	MovementOutput     MovementType = "output"
	MovementAdjustment MovementType = "adjustment"
	MovementReversal   MovementType = "reversal"
)

// Reference types stored on movements.
const (
	RefReceptionDetail = "reception_detail"
	RefOutputDetail    = "output_detail"
	RefProduct         = "product"
)

// InventoryMovement is the audit trail of stock changes. Quantity is signed:
// positive enters stock, negative leaves it.
type InventoryMovement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProductID     uint         `gorm:"index;not null" json:"product_id"`
	Product       *Product     `json:"product,omitempty"`
	Type          MovementType `gorm:"size:20;not null;index" json:"type"`
	Quantity      float64      `gorm:"not null" json:"quantity"`
	StockBefore   float64      `gorm:"not null" json:"stock_before"`
	StockAfter    float64      `gorm:"not null" json:"stock_after"`
	ReferenceType string       `gorm:"size:30;index:idx_movement_reference" json:"reference_type"`
	ReferenceID   uint         `gorm:"index:idx_movement_reference" json:"reference_id"`
	UserID        uint         `gorm:"index" json:"user_id"`
	Note          string       `gorm:"size:255" json:"note"`
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`
}
