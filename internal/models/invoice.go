package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is a supplier invoice. Number is unique per supplier.
type Invoice struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Number          string          `gorm:"size:50;not null;uniqueIndex:idx_invoice_supplier_number" json:"number"`
	SupplierID      uint            `gorm:"not null;uniqueIndex:idx_invoice_supplier_number" json:"supplier_id"`
	Supplier        *Supplier       `json:"supplier,omitempty"`
	PurchaseOrderID *uint           `gorm:"index" json:"purchase_order_id"`
	IssueDate       time.Time       `gorm:"index;not null" json:"issue_date"`
	DueDate         *time.Time      `json:"due_date"`
	Status          InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	Note            string          `gorm:"size:255" json:"note"`
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedByID     uint            `gorm:"index" json:"created_by_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Details []InvoiceDetail `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"details"`
}

type InvoiceDetail struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoice_id"`
	ProductID   *uint           `gorm:"index" json:"product_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
