package inventory

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/database"
	"logistics-backend/internal/httputil"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type AdjustmentRequest struct {
	ProductID uint    `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"ne=0"`
	Note      string  `json:"note" validate:"required,max=255"`
}

type KardexEntry struct {
	models.InventoryMovement
	Balance float64 `json:"balance"`
}

type KardexResponse struct {
	Product        models.Product `json:"product"`
	OpeningBalance float64        `json:"opening_balance"`
	ClosingBalance float64        `json:"closing_balance"`
	Entries        []KardexEntry  `json:"entries"`
}

// GET /api/inventory/movements?product_id=&type=&from=&to=&limit=&offset=
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.InventoryMovement{}).Preload("Product")
		if id := c.QueryInt("product_id"); id > 0 {
			q = q.Where("product_id = ?", id)
		}
		if t := c.Query("type"); t != "" {
			q = q.Where("type = ?", t)
		}
		from, to, err := httputil.DateRange(c)
		if err != nil {
			return err
		}
		if !from.IsZero() {
			q = q.Where("created_at >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("created_at < ?", to)
		}
		limit, offset := httputil.Page(c, 200, 1000)

		var movements []models.InventoryMovement
		if err := q.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&movements).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list movements")
		}
		return c.JSON(movements)
	}
}

// GET /api/products/:id/kardex?from=&to=
func KardexHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var product models.Product
		if err := database.DB.First(&product, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		from, to, err := httputil.DateRange(c)
		if err != nil {
			return err
		}

		resp, err := buildKardex(database.DB, product, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not build kardex")
		}
		return c.JSON(resp)
	}
}

// buildKardex lists the product's movements between from and to with a running balance.
// A zero from starts at the first movement; a zero to runs until now.
func buildKardex(db *gorm.DB, product models.Product, from, to time.Time) (*KardexResponse, error) {
	resp := &KardexResponse{Product: product, Entries: make([]KardexEntry, 0)}

	q := db.Model(&models.InventoryMovement{}).Where("product_id = ?", product.ID)
	if !from.IsZero() {
		var opening float64
		if err := db.Model(&models.InventoryMovement{}).
			Where("product_id = ? AND created_at < ?", product.ID, from).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&opening).Error; err != nil {
			return nil, err
		}
		resp.OpeningBalance = opening
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}

	var movements []models.InventoryMovement
	if err := q.Order("created_at asc, id asc").Find(&movements).Error; err != nil {
		return nil, err
	}

	balance := resp.OpeningBalance
	for _, m := range movements {
		balance += m.Quantity
		resp.Entries = append(resp.Entries, KardexEntry{InventoryMovement: m, Balance: balance})
	}
	resp.ClosingBalance = balance
	return resp, nil
}

// POST /api/inventory/adjustments
func CreateAdjustmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustmentRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var movement *models.InventoryMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			movement, err = ApplyMovement(c.UserContext(), tx, MovementInput{
				ProductID:     body.ProductID,
				Type:          models.MovementAdjustment,
				Quantity:      body.Quantity,
				ReferenceType: models.RefProduct,
				ReferenceID:   body.ProductID,
				UserID:        actor.ID,
				Note:          body.Note,
			})
			return err
		})
		if err != nil {
			return stockError(c, err, "could not adjust stock")
		}
		NotifyCommitted(c.UserContext(), movement)

		logAction(c, actor, audit.LogOptions{
			EntityType: audit.EntityAdjustment,
			EntityID:   movement.ID,
			Action:     models.AuditActionCreate,
			Description: fmt.Sprintf("Stock of %s adjusted by %g (%g -> %g): %s",
				movement.Product.Code, movement.Quantity, movement.StockBefore, movement.StockAfter, body.Note),
			After: movement,
		})
		return c.Status(fiber.StatusCreated).JSON(movement)
	}
}

// GET /api/inventory/consistency
func ConsistencyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		mismatches, err := FindStockMismatches(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check stock consistency")
		}
		return c.JSON(fiber.Map{
			"consistent": len(mismatches) == 0,
			"mismatches": mismatches,
		})
	}
}
