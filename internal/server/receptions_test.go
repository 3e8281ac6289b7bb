package server

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistics-backend/internal/models"
	"logistics-backend/internal/testutil"
)

func TestReceptionLifecycle(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	product := testutil.SeedProduct(t, env.db, "BOLT", 0, "2.00")

	order := env.createOrder(t, map[string]any{
		"supplier_id": supplier.ID,
		"details": []map[string]any{
			{"product_id": product.ID, "quantity": 10, "unit_price": "2.50"},
		},
	})
	assert.Equal(t, "PO-000001", order.Code)
	assert.Equal(t, models.PurchaseOrderOpen, order.Status)
	assert.True(t, decimal.RequireFromString("25").Equal(order.Total))

	// first partial delivery
	resp := testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": product.ID, "quantity": 4}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var first models.Reception
	testutil.Decode(t, resp, &first)
	assert.Equal(t, "REC-000001", first.Code)
	require.Len(t, first.Details, 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(first.Details[0].UnitCost), "unit cost defaults to the order price")

	assert.Equal(t, 4.0, env.stockOf(t, product.ID))
	assert.Equal(t, models.PurchaseOrderPartial, env.orderStatus(t, order.ID))

	var p models.Product
	require.NoError(t, env.db.First(&p, product.ID).Error)
	assert.True(t, decimal.RequireFromString("2.5").Equal(p.UnitCost), "last purchase cost is kept on the product")

	// more than what is pending
	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": product.ID, "quantity": 7}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 4.0, env.stockOf(t, product.ID))

	// the rest
	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": product.ID, "quantity": 6}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	assert.Equal(t, 10.0, env.stockOf(t, product.ID))
	assert.Equal(t, models.PurchaseOrderReceived, env.orderStatus(t, order.ID))

	// a received order takes nothing else
	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": product.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// deleting the first reception reverses its stock and reopens the order
	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/receptions/"+idStr(first.ID), env.storeTok, nil)
	testutil.RequireStatus(t, resp, http.StatusNoContent)

	assert.Equal(t, 6.0, env.stockOf(t, product.ID))
	assert.Equal(t, models.PurchaseOrderPartial, env.orderStatus(t, order.ID))

	var line models.PurchaseOrderDetail
	require.NoError(t, env.db.Where("purchase_order_id = ?", order.ID).First(&line).Error)
	assert.Equal(t, 6.0, line.ReceivedQuantity)

	var reversals int64
	env.db.Model(&models.InventoryMovement{}).Where("type = ?", models.MovementReversal).Count(&reversals)
	assert.Equal(t, int64(1), reversals)

	env.requireConsistent(t)
	assert.Len(t, env.events.Events(), 3)
}

func TestReceptionDetailEndpoints(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	a := testutil.SeedProduct(t, env.db, "A", 0, "1")
	b := testutil.SeedProduct(t, env.db, "B", 0, "1")

	order := env.createOrder(t, map[string]any{
		"supplier_id": supplier.ID,
		"details": []map[string]any{
			{"product_id": a.ID, "quantity": 5, "unit_price": 1},
			{"product_id": b.ID, "quantity": 5, "unit_price": 3},
		},
	})

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": a.ID, "quantity": 5}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var rec models.Reception
	testutil.Decode(t, resp, &rec)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions/"+idStr(rec.ID)+"/details", env.storeTok, map[string]any{
		"product_id": b.ID, "quantity": 2, "unit_cost": "2.75",
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	testutil.Decode(t, resp, &rec)
	require.Len(t, rec.Details, 2)
	assert.Equal(t, 2.0, env.stockOf(t, b.ID))

	// a product that is not on the order
	c := testutil.SeedProduct(t, env.db, "C", 0, "1")
	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions/"+idStr(rec.ID)+"/details", env.storeTok, map[string]any{
		"product_id": c.ID, "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodDelete,
		"/api/receptions/"+idStr(rec.ID)+"/details/"+idStr(rec.Details[1].ID), env.storeTok, nil)
	testutil.RequireStatus(t, resp, http.StatusNoContent)
	assert.Equal(t, 0.0, env.stockOf(t, b.ID))
	assert.Equal(t, 5.0, env.stockOf(t, a.ID))

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/receptions/"+idStr(rec.ID), env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &rec)
	assert.Len(t, rec.Details, 1)

	env.requireConsistent(t)
}

func TestReceptionDeleteRefusedWhenGoodsAlreadyIssued(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	product := testutil.SeedProduct(t, env.db, "A", 0, "1")

	order := env.createOrder(t, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": product.ID, "quantity": 5, "unit_price": 1}},
	})
	resp := testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": product.ID, "quantity": 5}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var rec models.Reception
	testutil.Decode(t, resp, &rec)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/outputs", env.storeTok, map[string]any{
		"destination": "Plant 2",
		"details":     []map[string]any{{"product_id": product.ID, "quantity": 3}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	// reversing 5 would leave -3 in stock
	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/receptions/"+idStr(rec.ID), env.storeTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 2.0, env.stockOf(t, product.ID))
	assert.Equal(t, models.PurchaseOrderReceived, env.orderStatus(t, order.ID))
}

func (e *testEnv) orderStatus(t *testing.T, id uint) models.PurchaseOrderStatus {
	t.Helper()
	var o models.PurchaseOrder
	require.NoError(t, e.db.First(&o, id).Error)
	return o.Status
}

func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	resp := testutil.Do(t, e.app, http.MethodGet, "/api/inventory/consistency", e.adminTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	var out struct {
		Consistent bool             `json:"consistent"`
		Mismatches []map[string]any `json:"mismatches"`
	}
	testutil.Decode(t, resp, &out)
	require.True(t, out.Consistent, "mismatches: %v", out.Mismatches)
}
