package inventory

import (
	"context"
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

type ReceptionLineRequest struct {
	PurchaseOrderDetailID *uint            `json:"purchase_order_detail_id"`
	ProductID             uint             `json:"product_id" validate:"required_without=PurchaseOrderDetailID"`
	Quantity              float64          `json:"quantity" validate:"gt=0"`
	UnitCost              *decimal.Decimal `json:"unit_cost"`
}

type CreateReceptionRequest struct {
	PurchaseOrderID uint                   `json:"purchase_order_id" validate:"required"`
	Date            string                 `json:"date"`
	Note            string                 `json:"note" validate:"max=255"`
	Details         []ReceptionLineRequest `json:"details" validate:"required,min=1,dive"`
}

// GET /api/receptions?purchase_order_id=&from=&to=
func ListReceptionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Reception{}).Preload("PurchaseOrder.Supplier")
		if id := c.QueryInt("purchase_order_id"); id > 0 {
			q = q.Where("purchase_order_id = ?", id)
		}
		from, to, err := httputil.DateRange(c)
		if err != nil {
			return err
		}
		if !from.IsZero() {
			q = q.Where("date >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("date < ?", to)
		}

		var receptions []models.Reception
		if err := q.Order("date desc, id desc").Find(&receptions).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list receptions")
		}
		return c.JSON(receptions)
	}
}

// GET /api/receptions/:id
func GetReceptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := loadReception(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "reception not found")
		}
		return c.JSON(r)
	}
}

// POST /api/receptions
// Every line raises stock and the order's received quantity in one transaction.
func CreateReceptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateReceptionRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		date, err := httputil.ParseDate(body.Date)
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var (
			reception models.Reception
			movements []*models.InventoryMovement
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			order, err := openOrder(tx, body.PurchaseOrderID)
			if err != nil {
				return err
			}

			reception = models.Reception{
				PurchaseOrderID: order.ID,
				Date:            date,
				ReceivedByID:    actor.ID,
				Note:            body.Note,
			}
			if err := tx.Omit("Details", "PurchaseOrder").Create(&reception).Error; err != nil {
				return err
			}
			reception.Code = models.DocumentCode(models.PrefixReception, reception.ID)
			if err := tx.Model(&reception).Update("code", reception.Code).Error; err != nil {
				return err
			}

			for _, line := range body.Details {
				m, err := receiveLine(c.UserContext(), tx, order, reception.ID, line, actor.ID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
			return refreshOrderStatus(tx, order.ID)
		})
		if err != nil {
			return stockError(c, err, "could not create reception")
		}
		NotifyCommitted(c.UserContext(), movements...)

		saved, err := loadReception(database.DB, reception.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load reception")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityReception,
			EntityID:    saved.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Reception %s created with %d lines", saved.Code, len(saved.Details)),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// POST /api/receptions/:id/details
func AddReceptionDetailHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ReceptionLineRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var movement *models.InventoryMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var reception models.Reception
			if err := tx.First(&reception, id).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "reception not found")
			}
			order, err := openOrder(tx, reception.PurchaseOrderID)
			if err != nil {
				return err
			}
			if movement, err = receiveLine(c.UserContext(), tx, order, reception.ID, body, actor.ID); err != nil {
				return err
			}
			return refreshOrderStatus(tx, order.ID)
		})
		if err != nil {
			return stockError(c, err, "could not add reception line")
		}
		NotifyCommitted(c.UserContext(), movement)

		saved, err := loadReception(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load reception")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityReception,
			EntityID:    saved.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Line added to reception %s", saved.Code),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// DELETE /api/receptions/:id/details/:detailId
func DeleteReceptionDetailHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		detailID, err := httputil.ParamID(c, "detailId")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var (
			movement *models.InventoryMovement
			removed  models.ReceptionDetail
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var reception models.Reception
			if err := tx.First(&reception, id).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "reception not found")
			}
			if err := tx.Where("id = ? AND reception_id = ?", detailID, id).First(&removed).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "reception line not found")
			}
			if movement, err = reverseReceptionLine(c.UserContext(), tx, removed, actor.ID); err != nil {
				return err
			}
			return refreshOrderStatus(tx, reception.PurchaseOrderID)
		})
		if err != nil {
			return stockError(c, err, "could not delete reception line")
		}
		NotifyCommitted(c.UserContext(), movement)

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityReception,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Reception line %d removed, %g units reversed", removed.ID, removed.Quantity),
			Before:      removed,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DELETE /api/receptions/:id
// Received goods are taken back out of stock with reversal movements.
func DeleteReceptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var (
			reception *models.Reception
			movements []*models.InventoryMovement
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			if reception, err = loadReception(tx, id); err != nil {
				return fiber.NewError(fiber.StatusNotFound, "reception not found")
			}
			for _, d := range reception.Details {
				m, err := reverseReceptionLine(c.UserContext(), tx, d, actor.ID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
			if err := tx.Delete(&models.Reception{}, id).Error; err != nil {
				return err
			}
			return refreshOrderStatus(tx, reception.PurchaseOrderID)
		})
		if err != nil {
			return stockError(c, err, "could not delete reception")
		}
		NotifyCommitted(c.UserContext(), movements...)

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityReception,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Reception %s deleted", reception.Code),
			Before:      reception,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func loadReception(db *gorm.DB, id uint) (*models.Reception, error) {
	var r models.Reception
	err := db.Preload("PurchaseOrder.Supplier").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Details.Product").
		First(&r, id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// openOrder loads a purchase order with its lines and checks it still accepts goods.
func openOrder(tx *gorm.DB, id uint) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := tx.Preload("Details").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "purchase order not found")
		}
		return nil, err
	}
	if !order.AcceptsReceptions() {
		return nil, fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("purchase order %s is %s and cannot receive goods", order.Code, order.Status))
	}
	return &order, nil
}

// receiveLine books one reception line against the matching order line.
// order.Details is updated in place so several lines for the same product add up.
func receiveLine(ctx context.Context, tx *gorm.DB, order *models.PurchaseOrder, receptionID uint, in ReceptionLineRequest, userID uint) (*models.InventoryMovement, error) {
	line := matchOrderLine(order, in)
	if line == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "the product is not on this purchase order")
	}
	if in.Quantity > line.Pending()+stockEpsilon {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("cannot receive %g, only %g pending on this order line", in.Quantity, line.Pending()))
	}

	cost := line.UnitPrice
	if in.UnitCost != nil {
		if in.UnitCost.IsNegative() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unit_cost cannot be negative")
		}
		cost = *in.UnitCost
	}

	lineID := line.ID
	detail := models.ReceptionDetail{
		ReceptionID:           receptionID,
		PurchaseOrderDetailID: &lineID,
		ProductID:             line.ProductID,
		Quantity:              in.Quantity,
		UnitCost:              cost,
	}
	if err := tx.Omit("Product").Create(&detail).Error; err != nil {
		return nil, err
	}

	line.ReceivedQuantity += in.Quantity
	if err := tx.Model(&models.PurchaseOrderDetail{}).Where("id = ?", line.ID).
		Update("received_quantity", line.ReceivedQuantity).Error; err != nil {
		return nil, err
	}

	movement, err := ApplyMovement(ctx, tx, MovementInput{
		ProductID:     line.ProductID,
		Type:          models.MovementReception,
		Quantity:      in.Quantity,
		ReferenceType: models.RefReceptionDetail,
		ReferenceID:   detail.ID,
		UserID:        userID,
	})
	if err != nil {
		return nil, err
	}

	// last purchase cost
	if err := tx.Model(&models.Product{}).Where("id = ?", line.ProductID).Update("unit_cost", cost).Error; err != nil {
		return nil, err
	}
	return movement, nil
}

func matchOrderLine(order *models.PurchaseOrder, in ReceptionLineRequest) *models.PurchaseOrderDetail {
	if in.PurchaseOrderDetailID != nil {
		for i := range order.Details {
			if order.Details[i].ID == *in.PurchaseOrderDetailID {
				return &order.Details[i]
			}
		}
		return nil
	}
	var fallback *models.PurchaseOrderDetail
	for i := range order.Details {
		d := &order.Details[i]
		if d.ProductID != in.ProductID {
			continue
		}
		if d.Pending() > stockEpsilon {
			return d
		}
		if fallback == nil {
			fallback = d
		}
	}
	return fallback
}

// reverseReceptionLine removes the line's goods from stock and from the order's received quantity.
func reverseReceptionLine(ctx context.Context, tx *gorm.DB, d models.ReceptionDetail, userID uint) (*models.InventoryMovement, error) {
	movement, err := ApplyMovement(ctx, tx, MovementInput{
		ProductID:     d.ProductID,
		Type:          models.MovementReversal,
		Quantity:      -d.Quantity,
		ReferenceType: models.RefReceptionDetail,
		ReferenceID:   d.ID,
		UserID:        userID,
		Note:          "reception line removed",
	})
	if err != nil {
		return nil, err
	}

	if d.PurchaseOrderDetailID != nil {
		var line models.PurchaseOrderDetail
		if err := tx.First(&line, *d.PurchaseOrderDetailID).Error; err == nil {
			received := line.ReceivedQuantity - d.Quantity
			if received < stockEpsilon {
				received = 0
			}
			if err := tx.Model(&line).Update("received_quantity", received).Error; err != nil {
				return nil, err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := tx.Delete(&models.ReceptionDetail{}, d.ID).Error; err != nil {
		return nil, err
	}
	return movement, nil
}

// refreshOrderStatus derives open/partial/received from the order lines. Cancelled orders are left alone.
func refreshOrderStatus(tx *gorm.DB, orderID uint) error {
	var order models.PurchaseOrder
	if err := tx.Preload("Details").First(&order, orderID).Error; err != nil {
		return err
	}
	if order.Status == models.PurchaseOrderCancelled {
		return nil
	}

	status := DeriveOrderStatus(order.Details)
	if status == order.Status {
		return nil
	}
	return tx.Model(&models.PurchaseOrder{}).Where("id = ?", orderID).Update("status", status).Error
}

// DeriveOrderStatus: received when every line is complete, partial when anything arrived.
func DeriveOrderStatus(lines []models.PurchaseOrderDetail) models.PurchaseOrderStatus {
	if len(lines) == 0 {
		return models.PurchaseOrderOpen
	}
	complete, touched := true, false
	for _, l := range lines {
		if l.ReceivedQuantity > stockEpsilon {
			touched = true
		}
		if l.Pending() > stockEpsilon {
			complete = false
		}
	}
	switch {
	case complete:
		return models.PurchaseOrderReceived
	case touched:
		return models.PurchaseOrderPartial
	}
	return models.PurchaseOrderOpen
}
