package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reception records goods received against a purchase order.
type Reception struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Code            string         `gorm:"size:20;index" json:"code"`
	PurchaseOrderID uint           `gorm:"index;not null" json:"purchase_order_id"`
	PurchaseOrder   *PurchaseOrder `json:"purchase_order,omitempty"`
	Date            time.Time      `gorm:"index;not null" json:"date"`
	ReceivedByID    uint           `gorm:"index" json:"received_by_id"`
	Note            string         `gorm:"size:255" json:"note"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Details []ReceptionDetail `gorm:"foreignKey:ReceptionID;constraint:OnDelete:CASCADE" json:"details"`
}

type ReceptionDetail struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	ReceptionID           uint            `gorm:"index;not null" json:"reception_id"`
	PurchaseOrderDetailID *uint           `gorm:"index" json:"purchase_order_detail_id"`
	ProductID             uint            `gorm:"index;not null" json:"product_id"`
	Product               *Product        `json:"product,omitempty"`
	Quantity              float64         `gorm:"not null" json:"quantity"`
	UnitCost              decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_cost"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
