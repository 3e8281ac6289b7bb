package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/database"
	"logistics-backend/internal/httputil"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type InvoiceLineRequest struct {
	ProductID   *uint           `json:"product_id"`
	Description string          `json:"description" validate:"max=255"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type InvoiceRequest struct {
	Number          string               `json:"number" validate:"required,max=50"`
	SupplierID      uint                 `json:"supplier_id" validate:"required"`
	PurchaseOrderID *uint                `json:"purchase_order_id"`
	IssueDate       string               `json:"issue_date"`
	DueDate         string               `json:"due_date"`
	TaxRate         decimal.Decimal      `json:"tax_rate"`
	Note            string               `json:"note" validate:"max=255"`
	Details         []InvoiceLineRequest `json:"details" validate:"required,min=1,dive"`
}

type PayInvoiceRequest struct {
	PaidAt string `json:"paid_at"`
}

var hundred = decimal.NewFromInt(100)

// GET /api/invoices?status=&supplier_id=&from=&to=
func ListInvoicesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Invoice{}).Preload("Supplier")
		if st := c.Query("status"); st != "" {
			q = q.Where("status = ?", st)
		}
		if id := c.QueryInt("supplier_id"); id > 0 {
			q = q.Where("supplier_id = ?", id)
		}
		from, to, err := httputil.DateRange(c)
		if err != nil {
			return err
		}
		if !from.IsZero() {
			q = q.Where("issue_date >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("issue_date < ?", to)
		}

		var invoices []models.Invoice
		if err := q.Order("issue_date desc, id desc").Find(&invoices).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list invoices")
		}
		return c.JSON(invoices)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		inv, err := loadInvoice(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		return c.JSON(inv)
	}
}

// POST /api/invoices
func CreateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body InvoiceRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		inv, err := buildInvoice(body)
		if err != nil {
			return err
		}
		inv.CreatedByID = actor.ID
		if err := checkInvoiceRefs(database.DB, inv, 0); err != nil {
			return internalError(c, err, "could not check invoice")
		}

		if err := database.DB.Create(inv).Error; err != nil {
			return internalError(c, err, "could not create invoice")
		}
		afterInvoiceChange(c)

		saved, err := loadInvoice(database.DB, inv.ID)
		if err != nil {
			return internalError(c, err, "could not load invoice")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityInvoice,
			EntityID:    saved.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Invoice %s registered, total %s", saved.Number, saved.Total.StringFixed(2)),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// PUT /api/invoices/:id
func UpdateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		current, err := loadInvoice(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		if current.Status != models.InvoicePending {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("invoice is %s and can no longer be edited", current.Status))
		}

		var body InvoiceRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		updated, err := buildInvoice(body)
		if err != nil {
			return err
		}
		updated.ID = current.ID
		updated.CreatedByID = current.CreatedByID
		updated.CreatedAt = current.CreatedAt
		// an omitted purchase_order_id keeps the link, 0 clears it
		switch {
		case body.PurchaseOrderID == nil:
			updated.PurchaseOrderID = current.PurchaseOrderID
		case *body.PurchaseOrderID == 0:
			updated.PurchaseOrderID = nil
		}
		if err := checkInvoiceRefs(database.DB, updated, id); err != nil {
			return internalError(c, err, "could not check invoice")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceDetail{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Details", "Supplier").Save(updated).Error; err != nil {
				return err
			}
			for i := range updated.Details {
				updated.Details[i].InvoiceID = id
			}
			return tx.Create(&updated.Details).Error
		})
		if err != nil {
			return internalError(c, err, "could not update invoice")
		}
		afterInvoiceChange(c)

		saved, err := loadInvoice(database.DB, id)
		if err != nil {
			return internalError(c, err, "could not load invoice")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityInvoice,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Invoice %s updated", saved.Number),
			Before:      current,
			After:       saved,
		})
		return c.JSON(saved)
	}
}

// DELETE /api/invoices/:id
func DeleteInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		inv, err := loadInvoice(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		if inv.Status != models.InvoicePending {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("invoice is %s and can no longer be deleted", inv.Status))
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceDetail{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Invoice{}, id).Error
		})
		if err != nil {
			return internalError(c, err, "could not delete invoice")
		}
		afterInvoiceChange(c)

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityInvoice,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Invoice %s deleted", inv.Number),
			Before:      inv,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/invoices/:id/pay
func PayInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PayInvoiceRequest
		if len(c.Body()) > 0 {
			if err := validation.ParseBody(c, &body); err != nil {
				return err
			}
		}
		paidAt := time.Now()
		if body.PaidAt != "" {
			d, err := httputil.ParseDate(body.PaidAt)
			if err != nil {
				return err
			}
			paidAt = d
		}
		return transition(c, models.InvoicePaid, map[string]any{
			"status":  models.InvoicePaid,
			"paid_at": paidAt,
		})
	}
}

// POST /api/invoices/:id/cancel
func CancelInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return transition(c, models.InvoiceCancelled, map[string]any{"status": models.InvoiceCancelled})
	}
}

// transition moves a pending invoice to a final status.
func transition(c *fiber.Ctx, to models.InvoiceStatus, updates map[string]any) error {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	inv, err := loadInvoice(database.DB, id)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}
	if inv.Status != models.InvoicePending {
		return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("invoice is already %s", inv.Status))
	}

	res := database.DB.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, models.InvoicePending).
		Updates(updates)
	if res.Error != nil {
		return internalError(c, res.Error, "could not update invoice")
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "invoice was changed by someone else")
	}
	afterInvoiceChange(c)

	saved, err := loadInvoice(database.DB, id)
	if err != nil {
		return internalError(c, err, "could not load invoice")
	}
	logAction(c, actor, audit.LogOptions{
		EntityType:  audit.EntityInvoice,
		EntityID:    id,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("Invoice %s %s", saved.Number, to),
		Before:      inv,
		After:       saved,
	})
	return c.JSON(saved)
}

func loadInvoice(db *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.Preload("Supplier").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&inv, id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// buildInvoice computes line subtotals, tax and total from the request.
func buildInvoice(body InvoiceRequest) (*models.Invoice, error) {
	issue, err := httputil.ParseDate(body.IssueDate)
	if err != nil {
		return nil, err
	}
	due, err := httputil.ParseOptionalDate(body.DueDate)
	if err != nil {
		return nil, err
	}
	if due != nil && due.Before(issue) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "due_date cannot be before issue_date")
	}
	if body.TaxRate.IsNegative() || body.TaxRate.GreaterThan(hundred) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "tax_rate must be between 0 and 100")
	}

	inv := &models.Invoice{
		Number:          strings.TrimSpace(body.Number),
		SupplierID:      body.SupplierID,
		PurchaseOrderID: body.PurchaseOrderID,
		IssueDate:       issue,
		DueDate:         due,
		Status:          models.InvoicePending,
		TaxRate:         body.TaxRate,
		Note:            body.Note,
		Details:         make([]models.InvoiceDetail, 0, len(body.Details)),
	}
	for i, l := range body.Details {
		if !l.Quantity.IsPositive() {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: quantity must be greater than 0", i+1))
		}
		if l.UnitPrice.IsNegative() {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: unit_price cannot be negative", i+1))
		}
		desc := strings.TrimSpace(l.Description)
		if desc == "" && l.ProductID == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: description or product_id is required", i+1))
		}
		inv.Details = append(inv.Details, models.InvoiceDetail{
			ProductID:   l.ProductID,
			Description: desc,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Quantity.Mul(l.UnitPrice).Round(2),
		})
	}
	inv.Subtotal, inv.Tax, inv.Total = Totals(inv.Details, inv.TaxRate)
	return inv, nil
}

// Totals returns subtotal, tax and total for the lines at a percentage tax rate.
func Totals(lines []models.InvoiceDetail, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal)
	}
	tax = subtotal.Mul(taxRate).Div(hundred).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// checkInvoiceRefs validates the supplier, the optional order and the number's uniqueness.
// Lines pointing at products get their description filled from the product.
func checkInvoiceRefs(db *gorm.DB, inv *models.Invoice, exceptID uint) error {
	var supplier models.Supplier
	if err := db.First(&supplier, inv.SupplierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "supplier not found")
		}
		return err
	}

	if inv.PurchaseOrderID != nil {
		var order models.PurchaseOrder
		if err := db.First(&order, *inv.PurchaseOrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "purchase order not found")
			}
			return err
		}
		if order.SupplierID != inv.SupplierID {
			return fiber.NewError(fiber.StatusBadRequest, "purchase order belongs to another supplier")
		}
	}

	var dup int64
	if err := db.Model(&models.Invoice{}).
		Where("supplier_id = ? AND number = ? AND id <> ?", inv.SupplierID, inv.Number, exceptID).
		Count(&dup).Error; err != nil {
		return err
	}
	if dup > 0 {
		return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("invoice %s already registered for this supplier", inv.Number))
	}

	for i := range inv.Details {
		d := &inv.Details[i]
		if d.ProductID == nil {
			continue
		}
		var p models.Product
		if err := db.First(&p, *d.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("product %d not found", *d.ProductID))
			}
			return err
		}
		if d.Description == "" {
			d.Description = p.Code + " " + p.Name
		}
	}
	return nil
}

// afterInvoiceChange drops the cached dashboard summary, which carries the unpaid total.
func afterInvoiceChange(c *fiber.Ctx) {
	cache.Invalidate(c.UserContext(), cache.DashboardSummaryKey)
}

func logAction(c *fiber.Ctx, actor auth.Actor, opts audit.LogOptions) {
	opts.UserID = actor.ID
	opts.UserName = actor.Name
	if err := audit.WriteLog(opts); err != nil {
		logger.Warn(c.UserContext()).Err(err).Str("entity_type", opts.EntityType).Msg("audit log not written")
	}
}

func internalError(c *fiber.Ctx, err error, msg string) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	logger.Error(c.UserContext()).Err(err).Str("path", c.Path()).Msg(msg)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}
