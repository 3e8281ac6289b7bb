package models

import (
	"time"

	"gorm.io/gorm"
)

type Supplier struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:150;not null;uniqueIndex" json:"name"`
	TaxID       string    `gorm:"size:20;index" json:"tax_id"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Phone       string    `gorm:"size:30" json:"phone"`
	Email       string    `gorm:"size:100" json:"email"`
	Address     string    `gorm:"size:255" json:"address"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SupplierReferences counts the purchase orders and invoices that point at a supplier.
// A supplier with either cannot be removed.
func SupplierReferences(db *gorm.DB, id uint) (orders, invoices int64, err error) {
	if err = db.Model(&PurchaseOrder{}).Where("supplier_id = ?", id).Count(&orders).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&Invoice{}).Where("supplier_id = ?", id).Count(&invoices).Error; err != nil {
		return 0, 0, err
	}
	return orders, invoices, nil
}
