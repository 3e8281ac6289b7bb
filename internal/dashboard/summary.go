package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"logistics-backend/internal/cache"
	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

type Summary struct {
	Suppliers           int64           `json:"suppliers"`
	Products            int64           `json:"products"`
	LowStockProducts    int64           `json:"low_stock_products"`
	PendingRequirements int64           `json:"pending_requirements"`
	OpenPurchaseOrders  int64           `json:"open_purchase_orders"`
	UnpaidInvoices      int64           `json:"unpaid_invoices"`
	UnpaidTotal         decimal.Decimal `json:"unpaid_total"`
	StockValue          decimal.Decimal `json:"stock_value"`
	MovementsToday      int64           `json:"movements_today"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// GET /api/dashboard/summary
// Served from Redis when a fresh copy exists; writes that move the counts drop the key.
func SummaryHandler(ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var s Summary
		if cache.GetJSON(ctx, cache.DashboardSummaryKey, &s) {
			c.Set("X-Cache", "HIT")
			return c.JSON(s)
		}

		s, err := BuildSummary(time.Now())
		if err != nil {
			logger.Error(ctx).Err(err).Msg("dashboard summary failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not build dashboard summary")
		}
		cache.SetJSON(ctx, cache.DashboardSummaryKey, s, ttl)

		c.Set("X-Cache", "MISS")
		return c.JSON(s)
	}
}

func BuildSummary(now time.Time) (Summary, error) {
	db := database.DB
	s := Summary{GeneratedAt: now, UnpaidTotal: decimal.Zero, StockValue: decimal.Zero}

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&s.Suppliers, &models.Supplier{}, "active = ?", []any{true}},
		{&s.Products, &models.Product{}, "active = ?", []any{true}},
		{&s.LowStockProducts, &models.Product{}, "active = ? AND current_stock <= min_stock", []any{true}},
		{&s.PendingRequirements, &models.Requirement{}, "status = ?", []any{models.RequirementPending}},
		{&s.OpenPurchaseOrders, &models.PurchaseOrder{}, "status IN ?", []any{[]models.PurchaseOrderStatus{models.PurchaseOrderOpen, models.PurchaseOrderPartial}}},
	}
	for _, q := range counts {
		if err := db.Model(q.model).Where(q.where, q.args...).Count(q.dst).Error; err != nil {
			return s, err
		}
	}

	var unpaid []models.Invoice
	if err := db.Select("id", "total").Where("status = ?", models.InvoicePending).Find(&unpaid).Error; err != nil {
		return s, err
	}
	s.UnpaidInvoices = int64(len(unpaid))
	for _, inv := range unpaid {
		s.UnpaidTotal = s.UnpaidTotal.Add(inv.Total)
	}

	var stocked []models.Product
	if err := db.Select("id", "current_stock", "unit_cost").Where("current_stock > 0").Find(&stocked).Error; err != nil {
		return s, err
	}
	for _, p := range stocked {
		s.StockValue = s.StockValue.Add(p.UnitCost.Mul(decimal.NewFromFloat(p.CurrentStock)))
	}
	s.StockValue = s.StockValue.Round(2)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.InventoryMovement{}).Where("created_at >= ?", startOfDay).Count(&s.MovementsToday).Error; err != nil {
		return s, err
	}
	return s, nil
}
