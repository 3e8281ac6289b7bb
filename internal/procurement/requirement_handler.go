package procurement

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/database"
	"logistics-backend/internal/httputil"
	"logistics-backend/internal/models"
	"logistics-backend/internal/validation"
)

type RequirementLineRequest struct {
	ProductID uint    `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Note      string  `json:"note" validate:"max=255"`
}

type RequirementRequest struct {
	Department string                   `json:"department" validate:"required,max=100"`
	Date       string                   `json:"date"`
	NeededBy   string                   `json:"needed_by"`
	Note       string                   `json:"note" validate:"max=255"`
	Details    []RequirementLineRequest `json:"details" validate:"required,min=1,dive"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// GET /api/requirements?status=&department=
func ListRequirementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Requirement{}).Preload("RequestedBy")
		if st := c.Query("status"); st != "" {
			q = q.Where("status = ?", st)
		}
		if d := strings.TrimSpace(c.Query("department")); d != "" {
			q = q.Where("LOWER(department) = ?", strings.ToLower(d))
		}

		var reqs []models.Requirement
		if err := q.Order("date desc, id desc").Find(&reqs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list requirements")
		}
		return c.JSON(reqs)
	}
}

// GET /api/requirements/:id
func GetRequirementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := loadRequirement(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "requirement not found")
		}
		return c.JSON(r)
	}
}

// POST /api/requirements
func CreateRequirementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RequirementRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		r := models.Requirement{
			RequestedByID: actor.ID,
			Status:        models.RequirementPending,
		}
		if err := applyRequirementBody(&r, body); err != nil {
			return err
		}
		if err := checkProducts(database.DB, requirementProductIDs(body.Details)); err != nil {
			return internalError(c, err, "could not check products")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			r.Code = models.DocumentCode(models.PrefixRequirement, r.ID)
			return tx.Model(&r).Update("code", r.Code).Error
		})
		if err != nil {
			return internalError(c, err, "could not create requirement")
		}

		saved, err := loadRequirement(database.DB, r.ID)
		if err != nil {
			return internalError(c, err, "could not load requirement")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityRequirement,
			EntityID:    saved.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Requirement %s created for %s", saved.Code, saved.Department),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// PUT /api/requirements/:id
// The body replaces the header and every line. Only pending requirements can change.
func UpdateRequirementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := loadRequirement(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "requirement not found")
		}
		if r.Status != models.RequirementPending {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("requirement is %s and can no longer be edited", r.Status))
		}

		var body RequirementRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		if err := checkProducts(database.DB, requirementProductIDs(body.Details)); err != nil {
			return internalError(c, err, "could not check products")
		}

		before := *r
		updated := *r
		updated.RequestedBy = nil
		if err := applyRequirementBody(&updated, body); err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("requirement_id = ?", id).Delete(&models.RequirementDetail{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Details", "RequestedBy").Save(&updated).Error; err != nil {
				return err
			}
			for i := range updated.Details {
				updated.Details[i].RequirementID = id
			}
			return tx.Create(&updated.Details).Error
		})
		if err != nil {
			return internalError(c, err, "could not update requirement")
		}

		saved, err := loadRequirement(database.DB, id)
		if err != nil {
			return internalError(c, err, "could not load requirement")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityRequirement,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Requirement %s updated", saved.Code),
			Before:      before,
			After:       saved,
		})
		return c.JSON(saved)
	}
}

// DELETE /api/requirements/:id
func DeleteRequirementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		r, err := loadRequirement(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "requirement not found")
		}
		if r.Status != models.RequirementPending {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("requirement is %s and can no longer be deleted", r.Status))
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("requirement_id = ?", id).Delete(&models.RequirementDetail{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Requirement{}, id).Error
		})
		if err != nil {
			return internalError(c, err, "could not delete requirement")
		}

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityRequirement,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Requirement %s deleted", r.Code),
			Before:      r,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/requirements/:id/approve
func ApproveRequirementHandler() fiber.Handler {
	return decideRequirement(models.RequirementApproved)
}

// POST /api/requirements/:id/reject
func RejectRequirementHandler() fiber.Handler {
	return decideRequirement(models.RequirementRejected)
}

func decideRequirement(to models.RequirementStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var reason string
		if to == models.RequirementRejected && len(c.Body()) > 0 {
			var body RejectRequest
			if err := validation.ParseBody(c, &body); err != nil {
				return err
			}
			reason = strings.TrimSpace(body.Reason)
		}

		r, err := loadRequirement(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "requirement not found")
		}
		if r.Status != models.RequirementPending {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("requirement is already %s", r.Status))
		}

		before := *r
		updates := map[string]any{"status": to}
		if reason != "" {
			r.Note = strings.TrimSpace(r.Note + " | rejected: " + reason)
			updates["note"] = r.Note
		}
		// guarded on status so two concurrent decisions cannot both win
		res := database.DB.Model(&models.Requirement{}).
			Where("id = ? AND status = ?", id, models.RequirementPending).
			Updates(updates)
		if res.Error != nil {
			return internalError(c, res.Error, "could not update requirement")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "requirement was decided by someone else")
		}
		r.Status = to

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityRequirement,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Requirement %s %s", r.Code, to),
			Before:      before,
			After:       r,
		})
		return c.JSON(r)
	}
}

func loadRequirement(db *gorm.DB, id uint) (*models.Requirement, error) {
	var r models.Requirement
	err := db.Preload("RequestedBy").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Details.Product").
		First(&r, id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func applyRequirementBody(r *models.Requirement, body RequirementRequest) error {
	date, err := httputil.ParseDate(body.Date)
	if err != nil {
		return err
	}
	neededBy, err := httputil.ParseOptionalDate(body.NeededBy)
	if err != nil {
		return err
	}
	if neededBy != nil && neededBy.Before(date) {
		return fiber.NewError(fiber.StatusBadRequest, "needed_by cannot be before date")
	}

	r.Department = strings.TrimSpace(body.Department)
	r.Date = date
	r.NeededBy = neededBy
	r.Note = body.Note
	r.Details = make([]models.RequirementDetail, 0, len(body.Details))
	for _, d := range body.Details {
		r.Details = append(r.Details, models.RequirementDetail{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			Note:      d.Note,
		})
	}
	return nil
}

func requirementProductIDs(lines []RequirementLineRequest) []uint {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
