package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderOpen      PurchaseOrderStatus = "open"
	PurchaseOrderPartial   PurchaseOrderStatus = "partial"
	PurchaseOrderReceived  PurchaseOrderStatus = "received"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

type PurchaseOrder struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	Code          string              `gorm:"size:20;index" json:"code"`
	SupplierID    uint                `gorm:"index;not null" json:"supplier_id"`
	Supplier      *Supplier           `json:"supplier,omitempty"`
	RequirementID *uint               `gorm:"index" json:"requirement_id"`
	Date          time.Time           `gorm:"index;not null" json:"date"`
	ExpectedDate  *time.Time          `json:"expected_date"`
	Status        PurchaseOrderStatus `gorm:"size:20;not null;index" json:"status"`
	Total         decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"total"`
	Note          string              `gorm:"size:255" json:"note"`
	CreatedByID   uint                `gorm:"index" json:"created_by_id"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`

	Details []PurchaseOrderDetail `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"details"`
}

// AcceptsReceptions reports whether goods can still be received against the order.
func (o PurchaseOrder) AcceptsReceptions() bool {
	return o.Status == PurchaseOrderOpen || o.Status == PurchaseOrderPartial
}

type PurchaseOrderDetail struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PurchaseOrderID  uint            `gorm:"index;not null" json:"purchase_order_id"`
	ProductID        uint            `gorm:"index;not null" json:"product_id"`
	Product          *Product        `json:"product,omitempty"`
	Quantity         float64         `gorm:"not null" json:"quantity"`
	ReceivedQuantity float64         `gorm:"not null" json:"received_quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (d PurchaseOrderDetail) Pending() float64 {
	if d.ReceivedQuantity >= d.Quantity {
		return 0
	}
	return d.Quantity - d.ReceivedQuantity
}
