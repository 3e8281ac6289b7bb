package procurement

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

// logAction writes the audit row and drops the cached dashboard summary, whose counts
// any logged change can move.
func logAction(c *fiber.Ctx, actor auth.Actor, opts audit.LogOptions) {
	cache.Invalidate(c.UserContext(), cache.DashboardSummaryKey)
	opts.UserID = actor.ID
	opts.UserName = actor.Name
	if err := audit.WriteLog(opts); err != nil {
		logger.Warn(c.UserContext()).Err(err).Str("entity_type", opts.EntityType).Msg("audit log not written")
	}
}

// checkProducts makes sure every id names an existing, active product.
func checkProducts(db *gorm.DB, ids []uint) error {
	seen := make(map[uint]struct{}, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	var products []models.Product
	if err := db.Where("id IN ?", unique).Find(&products).Error; err != nil {
		return err
	}
	found := make(map[uint]models.Product, len(products))
	for _, p := range products {
		found[p.ID] = p
	}
	for _, id := range unique {
		p, ok := found[id]
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("product %d not found", id))
		}
		if !p.Active {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("product %s is inactive", p.Code))
		}
	}
	return nil
}

func internalError(c *fiber.Ctx, err error, msg string) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	logger.Error(c.UserContext()).Err(err).Str("path", c.Path()).Msg(msg)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}
