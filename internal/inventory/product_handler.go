package inventory

import (
	"errors"
	"fmt"
	"strings"

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

type CreateProductRequest struct {
	Code         string           `json:"code" validate:"required,max=50"`
	Name         string           `json:"name" validate:"required,max=150"`
	Unit         string           `json:"unit" validate:"required,max=20"`
	Category     string           `json:"category" validate:"max=80"`
	MinStock     float64          `json:"min_stock" validate:"gte=0"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
	InitialStock float64          `json:"initial_stock" validate:"gte=0"`
}

// UpdateProductRequest has no stock field: stock only changes through movements.
type UpdateProductRequest struct {
	Code     *string          `json:"code" validate:"omitempty,max=50"`
	Name     *string          `json:"name" validate:"omitempty,max=150"`
	Unit     *string          `json:"unit" validate:"omitempty,max=20"`
	Category *string          `json:"category" validate:"omitempty,max=80"`
	MinStock *float64         `json:"min_stock" validate:"omitempty,gte=0"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
	Active   *bool            `json:"active"`
}

type ProductResponse struct {
	models.Product
	LowStock bool `json:"low_stock"`
}

func toProductResponse(p models.Product) ProductResponse {
	return ProductResponse{Product: p, LowStock: p.IsLowStock()}
}

// GET /api/products?search=&category=&low_stock=true&active=
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Product{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
		}
		if cat := c.Query("category"); cat != "" {
			q = q.Where("category = ?", cat)
		}
		if c.QueryBool("low_stock") {
			q = q.Where("current_stock <= min_stock")
		}
		if v := c.Query("active"); v != "" {
			q = q.Where("active = ?", c.QueryBool("active"))
		}

		var products []models.Product
		if err := q.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}

		resp := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, toProductResponse(p))
		}
		return c.JSON(resp)
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return c.JSON(toProductResponse(p))
	}
}

// POST /api/products
// A positive initial_stock is booked as an adjustment movement so the trail stays complete.
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		p := models.Product{
			Code:     strings.TrimSpace(body.Code),
			Name:     strings.TrimSpace(body.Name),
			Unit:     strings.TrimSpace(body.Unit),
			Category: strings.TrimSpace(body.Category),
			MinStock: body.MinStock,
			Active:   true,
		}
		if body.UnitCost != nil {
			if body.UnitCost.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "unit_cost cannot be negative")
			}
			p.UnitCost = *body.UnitCost
		}

		if taken, err := codeTaken(database.DB, p.Code, 0); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check product code")
		} else if taken {
			return fiber.NewError(fiber.StatusConflict, "product code already in use")
		}

		var movement *models.InventoryMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			if body.InitialStock > 0 {
				m, err := ApplyMovement(c.UserContext(), tx, MovementInput{
					ProductID:     p.ID,
					Type:          models.MovementAdjustment,
					Quantity:      body.InitialStock,
					ReferenceType: models.RefProduct,
					ReferenceID:   p.ID,
					UserID:        actor.ID,
					Note:          "initial stock",
				})
				if err != nil {
					return err
				}
				movement = m
				p.CurrentStock = m.StockAfter
			}
			return nil
		})
		if err != nil {
			return stockError(c, err, "could not create product")
		}
		if movement != nil {
			NotifyCommitted(c.UserContext(), movement)
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Product created: %s %s", p.Code, p.Name),
			After:       p,
		})

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(p))
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}

		var body UpdateProductRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		before := p
		if body.Code != nil {
			code := strings.TrimSpace(*body.Code)
			if code == "" {
				return fiber.NewError(fiber.StatusBadRequest, "code cannot be empty")
			}
			if taken, err := codeTaken(database.DB, code, p.ID); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not check product code")
			} else if taken {
				return fiber.NewError(fiber.StatusConflict, "product code already in use")
			}
			p.Code = code
		}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			p.Name = name
		}
		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "unit cannot be empty")
			}
			p.Unit = unit
		}
		if body.Category != nil {
			p.Category = strings.TrimSpace(*body.Category)
		}
		if body.MinStock != nil {
			p.MinStock = *body.MinStock
		}
		if body.UnitCost != nil {
			if body.UnitCost.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "unit_cost cannot be negative")
			}
			p.UnitCost = *body.UnitCost
		}
		if body.Active != nil {
			p.Active = *body.Active
		}

		// current_stock is omitted so a concurrent movement is never overwritten
		if err := database.DB.Model(&p).Select("code", "name", "unit", "category", "min_stock", "unit_cost", "active").Updates(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update product")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Product updated: %s", p.Code),
			Before:      before,
			After:       p,
		})

		return c.JSON(toProductResponse(p))
	}
}

// DELETE /api/products/:id
// Products with movements or document lines are kept; deactivate them instead.
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		inUse, err := productInUse(database.DB, p.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check product usage")
		}
		if inUse {
			return fiber.NewError(fiber.StatusConflict, "product has stock movements or document lines, deactivate it instead")
		}

		if err := database.DB.Delete(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete product")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Product deleted: %s %s", p.Code, p.Name),
			Before:      p,
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func codeTaken(db *gorm.DB, code string, exceptID uint) (bool, error) {
	var existing models.Product
	err := db.Where("code = ? AND id <> ?", code, exceptID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func productInUse(db *gorm.DB, productID uint) (bool, error) {
	for _, m := range []any{
		&models.InventoryMovement{},
		&models.RequirementDetail{},
		&models.PurchaseOrderDetail{},
		&models.ReceptionDetail{},
		&models.OutputDetail{},
		&models.InvoiceDetail{},
	} {
		var n int64
		if err := db.Model(m).Where("product_id = ?", productID).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
