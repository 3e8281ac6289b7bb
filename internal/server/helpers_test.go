package server

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"logistics-backend/internal/models"
	"logistics-backend/internal/testutil"
)

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (e *testEnv) stockOf(t *testing.T, productID uint) float64 {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, productID).Error)
	return p.CurrentStock
}

// createOrder posts a purchase order and returns it decoded.
func (e *testEnv) createOrder(t *testing.T, body map[string]any) models.PurchaseOrder {
	t.Helper()
	resp := testutil.Do(t, e.app, http.MethodPost, "/api/purchase-orders", e.buyerTok, body)
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var order models.PurchaseOrder
	testutil.Decode(t, resp, &order)
	return order
}

func (e *testEnv) adjust(t *testing.T, productID uint, qty float64) {
	t.Helper()
	resp := testutil.Do(t, e.app, http.MethodPost, "/api/inventory/adjustments", e.storeTok, map[string]any{
		"product_id": productID, "quantity": qty, "note": "stock count",
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
}
