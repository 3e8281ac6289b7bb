package audit

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"logistics-backend/internal/models"
)

type undoable struct {
	remove   func(tx *gorm.DB, id uint) error
	restore  func(tx *gorm.DB, id uint, before, after string) error
	recreate func(tx *gorm.DB, data string) error
}

// Receptions, outputs and adjustments are not listed here. They are reverted through
// the inventory endpoints, which write the matching reversal movements.
var undoables = map[string]undoable{
	EntitySupplier: {
		remove: func(tx *gorm.DB, id uint) error {
			orders, invoices, err := models.SupplierReferences(tx, id)
			if err != nil {
				return err
			}
			if orders > 0 || invoices > 0 {
				return fmt.Errorf("%w: supplier has %d purchase orders and %d invoices", ErrNotUndoable, orders, invoices)
			}
			return tx.Delete(&models.Supplier{}, id).Error
		},
		restore: func(tx *gorm.DB, id uint, data, _ string) error {
			var s models.Supplier
			if err := json.Unmarshal([]byte(data), &s); err != nil {
				return err
			}
			s.ID = id
			return tx.Omit("created_at").Save(&s).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var s models.Supplier
			if err := json.Unmarshal([]byte(data), &s); err != nil {
				return err
			}
			return tx.Create(&s).Error
		},
	},
	EntityProduct: {
		remove: func(tx *gorm.DB, id uint) error {
			var moves int64
			if err := tx.Model(&models.InventoryMovement{}).Where("product_id = ?", id).Count(&moves).Error; err != nil {
				return err
			}
			if moves > 0 {
				return fmt.Errorf("%w: product has stock movements", ErrNotUndoable)
			}
			return tx.Delete(&models.Product{}, id).Error
		},
		restore: func(tx *gorm.DB, id uint, data, _ string) error {
			var p models.Product
			if err := json.Unmarshal([]byte(data), &p); err != nil {
				return err
			}
			// current_stock belongs to the movement trail, never to a snapshot
			return tx.Model(&models.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
				"code":      p.Code,
				"name":      p.Name,
				"unit":      p.Unit,
				"category":  p.Category,
				"min_stock": p.MinStock,
				"unit_cost": p.UnitCost,
				"active":    p.Active,
			}).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var p models.Product
			if err := json.Unmarshal([]byte(data), &p); err != nil {
				return err
			}
			p.CurrentStock = 0
			return tx.Create(&p).Error
		},
	},
	EntityRequirement: {
		remove: func(tx *gorm.DB, id uint) error {
			var r models.Requirement
			if err := tx.First(&r, id).Error; err != nil {
				return err
			}
			if r.Status != models.RequirementPending {
				return fmt.Errorf("%w: requirement is %s", ErrNotUndoable, r.Status)
			}
			if err := requirementUnreferenced(tx, id); err != nil {
				return err
			}
			return tx.Select(clause.Associations).Delete(&r).Error
		},
		restore: func(tx *gorm.DB, id uint, data, after string) error {
			var current models.Requirement
			if err := tx.First(&current, id).Error; err != nil {
				return err
			}
			if err := statusUnchanged(string(current.Status), after); err != nil {
				return err
			}
			if err := requirementUnreferenced(tx, id); err != nil {
				return err
			}
			var r models.Requirement
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				return err
			}
			r.ID = id
			return replaceRequirement(tx, &r)
		},
		recreate: func(tx *gorm.DB, data string) error {
			var r models.Requirement
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				return err
			}
			r.RequestedBy = nil
			for i := range r.Details {
				r.Details[i].Product = nil
			}
			return tx.Create(&r).Error
		},
	},
	EntityInvoice: {
		remove: func(tx *gorm.DB, id uint) error {
			var inv models.Invoice
			if err := tx.First(&inv, id).Error; err != nil {
				return err
			}
			if inv.Status != models.InvoicePending {
				return fmt.Errorf("%w: invoice is %s", ErrNotUndoable, inv.Status)
			}
			return tx.Select(clause.Associations).Delete(&inv).Error
		},
		restore: func(tx *gorm.DB, id uint, data, after string) error {
			var current models.Invoice
			if err := tx.First(&current, id).Error; err != nil {
				return err
			}
			if err := statusUnchanged(string(current.Status), after); err != nil {
				return err
			}
			var inv models.Invoice
			if err := json.Unmarshal([]byte(data), &inv); err != nil {
				return err
			}
			inv.ID = id
			inv.Supplier = nil
			if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceDetail{}).Error; err != nil {
				return err
			}
			for i := range inv.Details {
				inv.Details[i].InvoiceID = id
			}
			return tx.Omit("created_at").Save(&inv).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var inv models.Invoice
			if err := json.Unmarshal([]byte(data), &inv); err != nil {
				return err
			}
			inv.Supplier = nil
			return tx.Create(&inv).Error
		},
	},
}

// statusUnchanged refuses to restore a snapshot once the row has moved past the status
// the logged change left it in.
func statusUnchanged(current, after string) error {
	var snap struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(after), &snap); err != nil {
		return err
	}
	if snap.Status != current {
		return fmt.Errorf("%w: status changed from %s to %s since", ErrNotUndoable, snap.Status, current)
	}
	return nil
}

func requirementUnreferenced(tx *gorm.DB, id uint) error {
	var orders int64
	if err := tx.Model(&models.PurchaseOrder{}).Where("requirement_id = ?", id).Count(&orders).Error; err != nil {
		return err
	}
	if orders > 0 {
		return fmt.Errorf("%w: requirement is referenced by a purchase order", ErrNotUndoable)
	}
	return nil
}

func replaceRequirement(tx *gorm.DB, r *models.Requirement) error {
	if err := tx.Where("requirement_id = ?", r.ID).Delete(&models.RequirementDetail{}).Error; err != nil {
		return err
	}
	r.RequestedBy = nil
	for i := range r.Details {
		r.Details[i].RequirementID = r.ID
		r.Details[i].Product = nil
	}
	return tx.Omit("created_at").Save(r).Error
}
