package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"logistics-backend/internal/database"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

type MovementChartPoint struct {
	Month    string  `json:"month"` // YYYY-MM
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
	Net      float64 `json:"net"`
}

type TopProduct struct {
	ProductID uint    `json:"product_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
}

// GET /api/dashboard/movements-chart?months=6
func MovementsChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		months := c.QueryInt("months", 6)
		if months <= 0 || months > 24 {
			return fiber.NewError(fiber.StatusBadRequest, "months must be between 1 and 24")
		}

		points, err := MovementsChart(time.Now().UTC(), months)
		if err != nil {
			logger.Error(c.UserContext()).Err(err).Msg("movements chart failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not build movements chart")
		}
		return c.JSON(points)
	}
}

// MovementsChart buckets movement quantities per calendar month, oldest first.
// Months without movements are present with zeros.
func MovementsChart(now time.Time, months int) ([]MovementChartPoint, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	var rows []models.InventoryMovement
	if err := database.DB.Select("quantity", "created_at").
		Where("created_at >= ?", start).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]MovementChartPoint, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		label := start.AddDate(0, i, 0).Format("2006-01")
		points[i] = MovementChartPoint{Month: label}
		index[label] = i
	}

	for _, m := range rows {
		i, ok := index[m.CreatedAt.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		if m.Quantity > 0 {
			points[i].Inbound += m.Quantity
		} else {
			points[i].Outbound -= m.Quantity
		}
	}
	for i := range points {
		points[i].Net = points[i].Inbound - points[i].Outbound
	}
	return points, nil
}

// GET /api/dashboard/top-products?limit=5
func TopProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 5)
		if limit <= 0 || limit > 50 {
			limit = 5
		}

		top, err := TopProducts(limit)
		if err != nil {
			logger.Error(c.UserContext()).Err(err).Msg("top products failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not load top products")
		}
		return c.JSON(top)
	}
}

// TopProducts ranks products by the quantity issued on outputs.
func TopProducts(limit int) ([]TopProduct, error) {
	type row struct {
		ProductID uint
		Total     float64
	}
	var rows []row
	if err := database.DB.Model(&models.OutputDetail{}).
		Select("product_id, SUM(quantity) AS total").
		Group("product_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProductID)
	}
	var products []models.Product
	if len(ids) > 0 {
		if err := database.DB.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	top := make([]TopProduct, 0, len(rows))
	for _, r := range rows {
		p := byID[r.ProductID]
		top = append(top, TopProduct{
			ProductID: r.ProductID,
			Code:      p.Code,
			Name:      p.Name,
			Unit:      p.Unit,
			Quantity:  r.Total,
		})
	}
	return top, nil
}
