package procurement

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/database"
	"logistics-backend/internal/httputil"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type CreateSupplierRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	TaxID       string `json:"tax_id" validate:"max=20"`
	ContactName string `json:"contact_name" validate:"max=100"`
	Phone       string `json:"phone" validate:"max=30"`
	Email       string `json:"email" validate:"omitempty,email,max=100"`
	Address     string `json:"address" validate:"max=255"`
}

type UpdateSupplierRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=150"`
	TaxID       *string `json:"tax_id" validate:"omitempty,max=20"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=100"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Email       *string `json:"email" validate:"omitempty,email,max=100"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	Active      *bool   `json:"active"`
}

// GET /api/suppliers?search=&active=
func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Supplier{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR tax_id LIKE ?", like, like)
		}
		if c.Query("active") != "" {
			q = q.Where("active = ?", c.QueryBool("active"))
		}

		var suppliers []models.Supplier
		if err := q.Order("name asc").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list suppliers")
		}
		return c.JSON(suppliers)
	}
}

// GET /api/suppliers/:id
func GetSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var s models.Supplier
		if err := database.DB.First(&s, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "supplier not found")
		}
		return c.JSON(s)
	}
}

// POST /api/suppliers
func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		s := models.Supplier{
			Name:        strings.TrimSpace(body.Name),
			TaxID:       strings.TrimSpace(body.TaxID),
			ContactName: strings.TrimSpace(body.ContactName),
			Phone:       strings.TrimSpace(body.Phone),
			Email:       strings.ToLower(strings.TrimSpace(body.Email)),
			Address:     strings.TrimSpace(body.Address),
			Active:      true,
		}
		if nameTaken(s.Name, 0) {
			return fiber.NewError(fiber.StatusConflict, "a supplier with this name already exists")
		}
		if err := database.DB.Create(&s).Error; err != nil {
			return internalError(c, err, "could not create supplier")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Supplier created: %s", s.Name),
			After:       s,
		})
		return c.Status(fiber.StatusCreated).JSON(s)
	}
}

// PUT /api/suppliers/:id
func UpdateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var s models.Supplier
		if err := database.DB.First(&s, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "supplier not found")
		}
		var body UpdateSupplierRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		before := s
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			if nameTaken(name, s.ID) {
				return fiber.NewError(fiber.StatusConflict, "a supplier with this name already exists")
			}
			s.Name = name
		}
		if body.TaxID != nil {
			s.TaxID = strings.TrimSpace(*body.TaxID)
		}
		if body.ContactName != nil {
			s.ContactName = strings.TrimSpace(*body.ContactName)
		}
		if body.Phone != nil {
			s.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Email != nil {
			s.Email = strings.ToLower(strings.TrimSpace(*body.Email))
		}
		if body.Address != nil {
			s.Address = strings.TrimSpace(*body.Address)
		}
		if body.Active != nil {
			s.Active = *body.Active
		}

		if err := database.DB.Save(&s).Error; err != nil {
			return internalError(c, err, "could not update supplier")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Supplier updated: %s", s.Name),
			Before:      before,
			After:       s,
		})
		return c.JSON(s)
	}
}

// DELETE /api/suppliers/:id
func DeleteSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var s models.Supplier
		if err := database.DB.First(&s, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "supplier not found")
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		orders, invoices, err := models.SupplierReferences(database.DB, id)
		if err != nil {
			return internalError(c, err, "could not check supplier")
		}
		if orders > 0 || invoices > 0 {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("supplier has %d purchase orders and %d invoices, deactivate it instead", orders, invoices))
		}

		if err := database.DB.Delete(&s).Error; err != nil {
			return internalError(c, err, "could not delete supplier")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntitySupplier,
			EntityID:    s.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Supplier deleted: %s", s.Name),
			Before:      s,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func nameTaken(name string, exceptID uint) bool {
	var n int64
	database.DB.Model(&models.Supplier{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).Count(&n)
	return n > 0
}
