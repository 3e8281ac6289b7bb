package inventory

import (
	"context"
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

type OutputLineRequest struct {
	ProductID uint    `json:"product_id" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
}

type CreateOutputRequest struct {
	Destination string              `json:"destination" validate:"required,max=150"`
	Reason      string              `json:"reason" validate:"max=150"`
	Date        string              `json:"date"`
	Note        string              `json:"note" validate:"max=255"`
	Details     []OutputLineRequest `json:"details" validate:"required,min=1,dive"`
}

// GET /api/outputs?destination=&from=&to=
func ListOutputsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Output{})
		if d := strings.TrimSpace(c.Query("destination")); d != "" {
			q = q.Where("LOWER(destination) LIKE ?", "%"+strings.ToLower(d)+"%")
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

		var outputs []models.Output
		if err := q.Order("date desc, id desc").Find(&outputs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list outputs")
		}
		return c.JSON(outputs)
	}
}

// GET /api/outputs/:id
func GetOutputHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := loadOutput(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "output not found")
		}
		return c.JSON(o)
	}
}

// POST /api/outputs
// Either every line is issued or none: one short line rolls back the whole output.
func CreateOutputHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOutputRequest
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
			output    models.Output
			movements []*models.InventoryMovement
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			output = models.Output{
				Destination: strings.TrimSpace(body.Destination),
				Reason:      strings.TrimSpace(body.Reason),
				Date:        date,
				IssuedByID:  actor.ID,
				Note:        body.Note,
			}
			if err := tx.Omit("Details").Create(&output).Error; err != nil {
				return err
			}
			output.Code = models.DocumentCode(models.PrefixOutput, output.ID)
			if err := tx.Model(&output).Update("code", output.Code).Error; err != nil {
				return err
			}

			for _, line := range body.Details {
				m, err := issueLine(c.UserContext(), tx, output.ID, line, actor.ID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
			return nil
		})
		if err != nil {
			return stockError(c, err, "could not create output")
		}
		NotifyCommitted(c.UserContext(), movements...)

		saved, err := loadOutput(database.DB, output.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load output")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityOutput,
			EntityID:    saved.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Output %s to %s with %d lines", saved.Code, saved.Destination, len(saved.Details)),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// POST /api/outputs/:id/details
func AddOutputDetailHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body OutputLineRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		var movement *models.InventoryMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var output models.Output
			if err := tx.First(&output, id).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "output not found")
			}
			movement, err = issueLine(c.UserContext(), tx, output.ID, body, actor.ID)
			return err
		})
		if err != nil {
			return stockError(c, err, "could not add output line")
		}
		NotifyCommitted(c.UserContext(), movement)

		saved, err := loadOutput(database.DB, id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load output")
		}
		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityOutput,
			EntityID:    saved.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Line added to output %s", saved.Code),
			After:       saved,
		})
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// DELETE /api/outputs/:id/details/:detailId
func DeleteOutputDetailHandler() fiber.Handler {
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
			removed  models.OutputDetail
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ? AND output_id = ?", detailID, id).First(&removed).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "output line not found")
			}
			movement, err = reverseOutputLine(c.UserContext(), tx, removed, actor.ID)
			return err
		})
		if err != nil {
			return stockError(c, err, "could not delete output line")
		}
		NotifyCommitted(c.UserContext(), movement)

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityOutput,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Output line %d removed, %g units returned to stock", removed.ID, removed.Quantity),
			Before:      removed,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DELETE /api/outputs/:id
func DeleteOutputHandler() fiber.Handler {
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
			output    *models.Output
			movements []*models.InventoryMovement
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			if output, err = loadOutput(tx, id); err != nil {
				return fiber.NewError(fiber.StatusNotFound, "output not found")
			}
			for _, d := range output.Details {
				m, err := reverseOutputLine(c.UserContext(), tx, d, actor.ID)
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}
			return tx.Delete(&models.Output{}, id).Error
		})
		if err != nil {
			return stockError(c, err, "could not delete output")
		}
		NotifyCommitted(c.UserContext(), movements...)

		logAction(c, actor, audit.LogOptions{
			EntityType:  audit.EntityOutput,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Output %s deleted", output.Code),
			Before:      output,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func loadOutput(db *gorm.DB, id uint) (*models.Output, error) {
	var o models.Output
	err := db.Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Details.Product").
		First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func issueLine(ctx context.Context, tx *gorm.DB, outputID uint, in OutputLineRequest, userID uint) (*models.InventoryMovement, error) {
	var n int64
	if err := tx.Model(&models.Product{}).Where("id = ?", in.ProductID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, in.ProductID)
	}

	detail := models.OutputDetail{
		OutputID:  outputID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
	}
	if err := tx.Omit("Product").Create(&detail).Error; err != nil {
		return nil, err
	}
	return ApplyMovement(ctx, tx, MovementInput{
		ProductID:     in.ProductID,
		Type:          models.MovementOutput,
		Quantity:      -in.Quantity,
		ReferenceType: models.RefOutputDetail,
		ReferenceID:   detail.ID,
		UserID:        userID,
	})
}

func reverseOutputLine(ctx context.Context, tx *gorm.DB, d models.OutputDetail, userID uint) (*models.InventoryMovement, error) {
	movement, err := ApplyMovement(ctx, tx, MovementInput{
		ProductID:     d.ProductID,
		Type:          models.MovementReversal,
		Quantity:      d.Quantity,
		ReferenceType: models.RefOutputDetail,
		ReferenceID:   d.ID,
		UserID:        userID,
		Note:          "output line removed",
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(&models.OutputDetail{}, d.ID).Error; err != nil {
		return nil, err
	}
	return movement, nil
}
