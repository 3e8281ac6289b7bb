package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"logistics-backend/internal/cache"
	"logistics-backend/internal/events"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/metrics"
	"logistics-backend/internal/models"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must not be zero")
)

// stockEpsilon absorbs float noise when comparing stock levels.
const stockEpsilon = 1e-9

var tracer = otel.Tracer("inventory-stock")

type MovementInput struct {
	ProductID     uint
	Type          models.MovementType
	Quantity      float64 // signed
	ReferenceType string
	ReferenceID   uint
	UserID        uint
	Note          string
}

// ApplyMovement moves a product's stock counter by in.Quantity and writes the matching
// InventoryMovement row. It must run inside the caller's transaction so the counter and
// the trail commit together. Stock never goes below zero.
func ApplyMovement(ctx context.Context, tx *gorm.DB, in MovementInput) (*models.InventoryMovement, error) {
	_, span := tracer.Start(ctx, "inventory.apply_movement")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", int64(in.ProductID)),
		attribute.String("movement.type", string(in.Type)),
		attribute.Float64("movement.quantity", in.Quantity),
	)

	if in.Quantity == 0 || math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) {
		return nil, ErrInvalidQuantity
	}

	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var product models.Product
	if err := q.First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, in.ProductID)
		}
		return nil, err
	}

	before := product.CurrentStock
	after := before + in.Quantity
	if after < -stockEpsilon {
		err := fmt.Errorf("%w: %s has %g %s, cannot remove %g",
			ErrInsufficientStock, product.Code, before, product.Unit, -in.Quantity)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if math.Abs(after) < stockEpsilon {
		after = 0
	}

	if err := tx.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("current_stock", after).Error; err != nil {
		return nil, fmt.Errorf("could not update stock: %w", err)
	}

	movement := models.InventoryMovement{
		ProductID:     product.ID,
		Type:          in.Type,
		Quantity:      in.Quantity,
		StockBefore:   before,
		StockAfter:    after,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		UserID:        in.UserID,
		Note:          in.Note,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, fmt.Errorf("could not write movement: %w", err)
	}

	product.CurrentStock = after
	movement.Product = &product
	return &movement, nil
}

// NotifyCommitted runs the side effects of committed movements: metrics, events and
// dashboard cache invalidation. Failures are logged, never returned.
func NotifyCommitted(ctx context.Context, movements ...*models.InventoryMovement) {
	if len(movements) == 0 {
		return
	}

	for _, m := range movements {
		metrics.ObserveMovement(string(m.Type), m.Quantity)

		evt := events.MovementEvent{
			MovementID:    m.ID,
			ProductID:     m.ProductID,
			MovementType:  string(m.Type),
			Quantity:      m.Quantity,
			StockAfter:    m.StockAfter,
			ReferenceType: m.ReferenceType,
			ReferenceID:   m.ReferenceID,
			UserID:        m.UserID,
			Timestamp:     m.CreatedAt,
		}
		if m.Product != nil {
			evt.ProductCode = m.Product.Code
		}
		if err := events.Default.PublishMovement(ctx, evt); err != nil {
			metrics.EventPublishFailures.Inc()
			logger.Error(ctx).Err(err).Uint("movement_id", m.ID).Msg("could not publish movement event")
		}
	}

	cache.Invalidate(ctx, cache.DashboardSummaryKey)
}

// StockMismatch describes a product whose counter disagrees with its movement trail.
type StockMismatch struct {
	ProductID    uint    `json:"product_id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	CurrentStock float64 `json:"current_stock"`
	MovementSum  float64 `json:"movement_sum"`
	Difference   float64 `json:"difference"`
}

// FindStockMismatches compares every product counter with the sum of its movements.
func FindStockMismatches(db *gorm.DB) ([]StockMismatch, error) {
	type row struct {
		ProductID uint
		Total     float64
	}
	var sums []row
	if err := db.Model(&models.InventoryMovement{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS total").
		Group("product_id").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	byProduct := make(map[uint]float64, len(sums))
	for _, s := range sums {
		byProduct[s.ProductID] = s.Total
	}

	var products []models.Product
	if err := db.Order("code asc").Find(&products).Error; err != nil {
		return nil, err
	}

	mismatches := make([]StockMismatch, 0)
	for _, p := range products {
		sum := byProduct[p.ID]
		if math.Abs(sum-p.CurrentStock) > 1e-6 {
			mismatches = append(mismatches, StockMismatch{
				ProductID:    p.ID,
				Code:         p.Code,
				Name:         p.Name,
				CurrentStock: p.CurrentStock,
				MovementSum:  sum,
				Difference:   p.CurrentStock - sum,
			})
		}
	}
	return mismatches, nil
}
