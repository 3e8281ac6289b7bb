package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logistics-backend/internal/models"
	"logistics-backend/internal/testutil"
)

func apply(t *testing.T, db *gorm.DB, in MovementInput) (*models.InventoryMovement, error) {
	t.Helper()
	var m *models.InventoryMovement
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = ApplyMovement(context.Background(), tx, in)
		return err
	})
	return m, err
}

func TestApplyMovementUpdatesCounterAndTrail(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedProduct(t, db, "P-1", 0, "2.50")

	m, err := apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementReception, Quantity: 10, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.StockBefore)
	assert.Equal(t, 10.0, m.StockAfter)
	require.NotNil(t, m.Product)
	assert.Equal(t, "P-1", m.Product.Code)

	m, err = apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementOutput, Quantity: -4, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.StockBefore)
	assert.Equal(t, 6.0, m.StockAfter)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, 6.0, reloaded.CurrentStock)

	var count int64
	db.Model(&models.InventoryMovement{}).Where("product_id = ?", p.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestApplyMovementRefusesNegativeStock(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedProduct(t, db, "P-1", 0, "1")

	_, err := apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementReception, Quantity: 3})
	require.NoError(t, err)

	_, err = apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementOutput, Quantity: -5})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, 3.0, reloaded.CurrentStock)

	var count int64
	db.Model(&models.InventoryMovement{}).Count(&count)
	assert.Equal(t, int64(1), count, "rejected movement must not be written")
}

func TestApplyMovementAllowsDrainingToZero(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedProduct(t, db, "P-1", 0, "1")

	_, err := apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementReception, Quantity: 0.3})
	require.NoError(t, err)
	_, err = apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementOutput, Quantity: -0.1})
	require.NoError(t, err)
	m, err := apply(t, db, MovementInput{ProductID: p.ID, Type: models.MovementOutput, Quantity: -0.2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.StockAfter)
}

func TestApplyMovementValidatesInput(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := apply(t, db, MovementInput{ProductID: 1, Type: models.MovementAdjustment, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = apply(t, db, MovementInput{ProductID: 999, Type: models.MovementAdjustment, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestNotifyCommittedPublishesEvents(t *testing.T) {
	db := testutil.NewDB(t)
	pub := testutil.UseMemoryPublisher(t)
	p := testutil.SeedProduct(t, db, "P-9", 0, "1")

	m, err := apply(t, db, MovementInput{
		ProductID:     p.ID,
		Type:          models.MovementReception,
		Quantity:      7,
		ReferenceType: models.RefReceptionDetail,
		ReferenceID:   42,
		UserID:        3,
	})
	require.NoError(t, err)

	NotifyCommitted(context.Background(), m)

	got := pub.Events()
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ProductID)
	assert.Equal(t, "P-9", got[0].ProductCode)
	assert.Equal(t, "reception", got[0].MovementType)
	assert.Equal(t, 7.0, got[0].Quantity)
	assert.Equal(t, uint(42), got[0].ReferenceID)
}

func TestFindStockMismatches(t *testing.T) {
	db := testutil.NewDB(t)
	ok := testutil.SeedProduct(t, db, "OK", 0, "1")
	bad := testutil.SeedProduct(t, db, "BAD", 0, "1")

	_, err := apply(t, db, MovementInput{ProductID: ok.ID, Type: models.MovementReception, Quantity: 5})
	require.NoError(t, err)
	_, err = apply(t, db, MovementInput{ProductID: bad.ID, Type: models.MovementReception, Quantity: 5})
	require.NoError(t, err)

	mismatches, err := FindStockMismatches(db)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	// counter edited behind the bookkeeping's back
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", bad.ID).Update("current_stock", 8).Error)

	mismatches, err = FindStockMismatches(db)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "BAD", mismatches[0].Code)
	assert.Equal(t, 5.0, mismatches[0].MovementSum)
	assert.Equal(t, 3.0, mismatches[0].Difference)
}

func TestDeriveOrderStatus(t *testing.T) {
	line := func(qty, received float64) models.PurchaseOrderDetail {
		return models.PurchaseOrderDetail{Quantity: qty, ReceivedQuantity: received}
	}

	assert.Equal(t, models.PurchaseOrderOpen, DeriveOrderStatus(nil))
	assert.Equal(t, models.PurchaseOrderOpen, DeriveOrderStatus([]models.PurchaseOrderDetail{line(5, 0), line(2, 0)}))
	assert.Equal(t, models.PurchaseOrderPartial, DeriveOrderStatus([]models.PurchaseOrderDetail{line(5, 5), line(2, 0)}))
	assert.Equal(t, models.PurchaseOrderPartial, DeriveOrderStatus([]models.PurchaseOrderDetail{line(5, 1)}))
	assert.Equal(t, models.PurchaseOrderReceived, DeriveOrderStatus([]models.PurchaseOrderDetail{line(5, 5), line(2, 2)}))
}

func TestBuildKardexRunningBalance(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedProduct(t, db, "K-1", 0, "1")

	for _, q := range []float64{10, -3, -2, 4} {
		typ := models.MovementReception
		if q < 0 {
			typ = models.MovementOutput
		}
		_, err := apply(t, db, MovementInput{ProductID: p.ID, Type: typ, Quantity: q})
		require.NoError(t, err)
	}

	resp, err := buildKardex(db, p, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.OpeningBalance)
	require.Len(t, resp.Entries, 4)

	balances := make([]float64, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		balances = append(balances, e.Balance)
		assert.Equal(t, e.StockAfter, e.Balance)
	}
	assert.Equal(t, []float64{10, 7, 5, 9}, balances)
	assert.Equal(t, 9.0, resp.ClosingBalance)
}
