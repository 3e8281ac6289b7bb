package procurement

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/database"
	"logistics-backend/internal/httputil"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type OrderLineRequest struct {
	ProductID uint            `json:"product_id" validate:"required"`
	Quantity  float64         `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PurchaseOrderRequest struct {
	SupplierID    uint               `json:"supplier_id" validate:"required"`
	RequirementID *uint              `json:"requirement_id"`
	Date          string             `json:"date"`
	ExpectedDate  string             `json:"expected_date"`
	Note          string             `json:"note" validate:"max=255"`
	Details       []OrderLineRequest `json:"details" validate:"required,min=1,dive"`
}

// FromRequirementRequest prices a requirement's lines. Products without a price use their unit cost.
type FromRequirementRequest struct {
	SupplierID   uint                       `json:"supplier_id" validate:"required"`
	Date         string                     `json:"date"`
	ExpectedDate string                     `json:"expected_date"`
	Note         string                     `json:"note" validate:"max=255"`
	Prices       map[string]decimal.Decimal `json:"prices"`
}

// GET /api/purchase-orders?status=&supplier_id=
func ListPurchaseOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.PurchaseOrder{}).Preload("Supplier")
		if st := c.Query("status"); st != "" {
			q = q.Where("status = ?", st)
		}
		if id := c.QueryInt("supplier_id"); id > 0 {
			q = q.Where("supplier_id = ?", id)
		}

		var orders []models.PurchaseOrder
		if err := q.Order("date desc, id desc").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list purchase orders")
		}
		return c.JSON(orders)
	}
}

// GET /api/purchase-orders/:id
func GetPurchaseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := loadOrder(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "purchase order not found")
		}
		return c.JSON(o)
	}
}

// POST /api/purchase-orders
func CreatePurchaseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PurchaseOrderRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		order, err := buildOrder(body)
		if err != nil {
			return err
		}
		order.CreatedByID = actor.ID
		if err := checkOrderRefs(database.DB, order); err != nil {
			return internalError(c, err, "could not check purchase order")
		}

		if err := createOrder(order, body.RequirementID); err != nil {
			return internalError(c, err, "could not create purchase order")
		}
		return respondCreated(c, actor, order.ID)
	}
}

// POST /api/purchase-orders/from-requirement/:id
// Quantities are copied from the approved requirement; the supplier and prices come from the body.
func CreateFromRequirementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body FromRequirementRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		r, err := loadRequirement(database.DB, reqID)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "requirement not found")
		}

		lines := make([]OrderLineRequest, 0, len(r.Details))
		for _, d := range r.Details {
			price, ok := body.Prices[fmt.Sprint(d.ProductID)]
			if !ok && d.Product != nil {
				price = d.Product.UnitCost
			}
			lines = append(lines, OrderLineRequest{ProductID: d.ProductID, Quantity: d.Quantity, UnitPrice: price})
		}

		order, err := buildOrder(PurchaseOrderRequest{
			SupplierID:    body.SupplierID,
			RequirementID: &r.ID,
			Date:          body.Date,
			ExpectedDate:  body.ExpectedDate,
			Note:          body.Note,
			Details:       lines,
		})
		if err != nil {
			return err
		}
		order.CreatedByID = actor.ID
		if err := checkOrderRefs(database.DB, order); err != nil {
			return internalError(c, err, "could not check purchase order")
		}

		if err := createOrder(order, &r.ID); err != nil {
			return internalError(c, err, "could not create purchase order")
		}
		return respondCreated(c, actor, order.ID)
	}
}

// PUT /api/purchase-orders/:id
// Replaces supplier, dates and lines. Only open orders without receptions can change.
func UpdatePurchaseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		current, err := loadOrder(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "purchase order not found")
		}
		if err := ensureEditable(database.DB, current); err != nil {
			return internalError(c, err, "could not check purchase order")
		}

		var body PurchaseOrderRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		if body.RequirementID != nil && !sameRequirement(body.RequirementID, current.RequirementID) {
			return fiber.NewError(fiber.StatusBadRequest, "requirement_id cannot be changed")
		}

		updated, err := buildOrder(body)
		if err != nil {
			return err
		}
		updated.ID = current.ID
		updated.Code = current.Code
		updated.RequirementID = current.RequirementID
		updated.CreatedByID = current.CreatedByID
		updated.CreatedAt = current.CreatedAt
		if err := checkOrderRefs(database.DB, updated); err != nil {
			return internalError(c, err, "could not check purchase order")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("purchase_order_id = ?", id).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Details", "Supplier").Save(updated).Error; err != nil {
				return err
			}
			for i := range updated.Details {
				updated.Details[i].PurchaseOrderID = id
			}
			return tx.Create(&updated.Details).Error
		})
		if err != nil {
			return internalError(c, err, "could not update purchase order")
		}

		saved, err := loadOrder(database.DB, id)
		if err != nil {
			return internalError(c, err, "could not load purchase order")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityPurchaseOrder,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Purchase order %s updated, total %s", saved.Code, saved.Total.StringFixed(2)),
			Before:      current,
			After:       saved,
		})
		return c.JSON(saved)
	}
}

// DELETE /api/purchase-orders/:id
// A linked requirement goes back to approved so it can be ordered again.
func DeletePurchaseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		order, err := loadOrder(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "purchase order not found")
		}
		if err := ensureEditable(database.DB, order); err != nil {
			return internalError(c, err, "could not check purchase order")
		}
		var invoices int64
		if err := database.DB.Model(&models.Invoice{}).Where("purchase_order_id = ?", id).Count(&invoices).Error; err != nil {
			return internalError(c, err, "could not check purchase order")
		}
		if invoices > 0 {
			return fiber.NewError(fiber.StatusConflict, "purchase order has invoices")
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := releaseRequirement(tx, order); err != nil {
				return err
			}
			if err := tx.Where("purchase_order_id = ?", id).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.PurchaseOrder{}, id).Error
		})
		if err != nil {
			return internalError(c, err, "could not delete purchase order")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityPurchaseOrder,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Purchase order %s deleted", order.Code),
			Before:      order,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/purchase-orders/:id/cancel
// Goods already received stay in stock; the order just stops accepting receptions.
func CancelPurchaseOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		order, err := loadOrder(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "purchase order not found")
		}
		if !order.AcceptsReceptions() {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("purchase order is %s and cannot be cancelled", order.Status))
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		before := *order
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if order.Status == models.PurchaseOrderOpen {
				if err := releaseRequirement(tx, order); err != nil {
					return err
				}
			}
			return tx.Model(&models.PurchaseOrder{}).Where("id = ?", id).
				Update("status", models.PurchaseOrderCancelled).Error
		})
		if err != nil {
			return internalError(c, err, "could not cancel purchase order")
		}
		order.Status = models.PurchaseOrderCancelled

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityPurchaseOrder,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Purchase order %s cancelled", order.Code),
			Before:      before,
			After:       order,
		})
		return c.JSON(order)
	}
}

func loadOrder(db *gorm.DB, id uint) (*models.PurchaseOrder, error) {
	var o models.PurchaseOrder
	err := db.Preload("Supplier").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Details.Product").
		First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// buildOrder turns a request into an open order with line subtotals and the total computed.
func buildOrder(body PurchaseOrderRequest) (*models.PurchaseOrder, error) {
	date, err := httputil.ParseDate(body.Date)
	if err != nil {
		return nil, err
	}
	expected, err := httputil.ParseOptionalDate(body.ExpectedDate)
	if err != nil {
		return nil, err
	}
	if expected != nil && expected.Before(date) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "expected_date cannot be before date")
	}

	order := &models.PurchaseOrder{
		SupplierID:    body.SupplierID,
		RequirementID: body.RequirementID,
		Date:          date,
		ExpectedDate:  expected,
		Status:        models.PurchaseOrderOpen,
		Note:          body.Note,
		Details:       make([]models.PurchaseOrderDetail, 0, len(body.Details)),
	}
	for _, l := range body.Details {
		if l.UnitPrice.IsNegative() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unit_price cannot be negative")
		}
		order.Details = append(order.Details, models.PurchaseOrderDetail{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  LineSubtotal(l.Quantity, l.UnitPrice),
		})
	}
	order.Total = OrderTotal(order.Details)
	return order, nil
}

// LineSubtotal is quantity x unit price rounded to cents.
func LineSubtotal(qty float64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(qty)).Round(2)
}

func OrderTotal(lines []models.PurchaseOrderDetail) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

func checkOrderRefs(db *gorm.DB, order *models.PurchaseOrder) error {
	var supplier models.Supplier
	if err := db.First(&supplier, order.SupplierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "supplier not found")
		}
		return err
	}
	if !supplier.Active {
		return fiber.NewError(fiber.StatusBadRequest, "supplier is inactive")
	}

	ids := make([]uint, 0, len(order.Details))
	for _, d := range order.Details {
		ids = append(ids, d.ProductID)
	}
	return checkProducts(db, ids)
}

// createOrder stores the order and, when linked, moves the approved requirement to ordered.
func createOrder(order *models.PurchaseOrder, requirementID *uint) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if requirementID != nil {
			res := tx.Model(&models.Requirement{}).
				Where("id = ? AND status = ?", *requirementID, models.RequirementApproved).
				Update("status", models.RequirementOrdered)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fiber.NewError(fiber.StatusConflict, "requirement must exist and be approved to be ordered")
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		order.Code = models.DocumentCode(models.PrefixPurchaseOrder, order.ID)
		return tx.Model(order).Update("code", order.Code).Error
	})
}

func respondCreated(c *fiber.Ctx, actor auth.Actor, id uint) error {
	saved, err := loadOrder(database.DB, id)
	if err != nil {
		return internalError(c, err, "could not load purchase order")
	}
	logAction(c, actor, audit.LogOptions{
		EntityType:  audit.EntityPurchaseOrder,
		EntityID:    saved.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Purchase order %s created, total %s", saved.Code, saved.Total.StringFixed(2)),
		After:       saved,
	})
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func ensureEditable(db *gorm.DB, order *models.PurchaseOrder) error {
	if order.Status != models.PurchaseOrderOpen {
		return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("purchase order is %s and can no longer be changed", order.Status))
	}
	var receptions int64
	if err := db.Model(&models.Reception{}).Where("purchase_order_id = ?", order.ID).Count(&receptions).Error; err != nil {
		return err
	}
	if receptions > 0 {
		return fiber.NewError(fiber.StatusConflict, "purchase order already has receptions")
	}
	return nil
}

func releaseRequirement(tx *gorm.DB, order *models.PurchaseOrder) error {
	if order.RequirementID == nil {
		return nil
	}
	return tx.Model(&models.Requirement{}).
		Where("id = ? AND status = ?", *order.RequirementID, models.RequirementOrdered).
		Update("status", models.RequirementApproved).Error
}

func sameRequirement(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
