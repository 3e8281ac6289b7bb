package inventory

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"logistics-backend/internal/audit"
	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/logger"
)

// stockError maps bookkeeping failures to HTTP errors. Anything unknown becomes a 500.
func stockError(c *fiber.Ctx, err error, fallback string) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrProductNotFound):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	logger.Error(c.UserContext()).Err(err).Str("path", c.Path()).Msg(fallback)
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

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
