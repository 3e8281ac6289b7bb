package audit

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

// GET /api/audit-logs?entity_type=&entity_id=&limit=
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.AuditLog{})
		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}
		if id := c.QueryInt("entity_id"); id > 0 {
			q = q.Where("entity_id = ?", id)
		}

		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		var logs []models.AuditLog
		if err := q.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list audit logs")
		}
		return c.JSON(logs)
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}

		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		undoEntry, err := UndoLog(uint(id), actor.ID, actor.Name)
		switch {
		case err == nil:
		case errors.Is(err, ErrLogNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusConflict, "the entity no longer exists")
		default:
			logger.Error(c.UserContext()).Err(err).Int("audit_log_id", id).Msg("undo failed")
			return fiber.NewError(fiber.StatusInternalServerError, "undo failed")
		}
		cache.Invalidate(c.UserContext(), cache.DashboardSummaryKey)

		return c.JSON(undoEntry)
	}
}
