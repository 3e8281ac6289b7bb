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

func TestSupplierCRUD(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/suppliers", env.buyerTok, map[string]any{
		"name": "  Northwind ", "email": "Sales@Northwind.test", "tax_id": "20123456789",
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var s models.Supplier
	testutil.Decode(t, resp, &s)
	assert.Equal(t, "Northwind", s.Name)
	assert.Equal(t, "sales@northwind.test", s.Email)
	assert.True(t, s.Active)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/suppliers", env.buyerTok, map[string]any{"name": "northwind"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/suppliers", env.buyerTok, map[string]any{"name": "Bad", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPut, "/api/suppliers/"+idStr(s.ID), env.buyerTok, map[string]any{
		"phone": "555-0100", "active": false,
	})
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &s)
	assert.Equal(t, "555-0100", s.Phone)
	assert.False(t, s.Active)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/suppliers?active=false", env.storeTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	var list []models.Supplier
	testutil.Decode(t, resp, &list)
	require.Len(t, list, 1)

	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/suppliers/"+idStr(s.ID), env.adminTok, nil)
	testutil.RequireStatus(t, resp, http.StatusNoContent)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/suppliers/"+idStr(s.ID), env.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSupplierWithOrdersCannotBeDeleted(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	product := testutil.SeedProduct(t, env.db, "A", 0, "1")
	env.createOrder(t, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": product.ID, "quantity": 1, "unit_price": 1}},
	})

	resp := testutil.Do(t, env.app, http.MethodDelete, "/api/suppliers/"+idStr(supplier.ID), env.adminTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequirementApprovalToOrder(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	a := testutil.SeedProduct(t, env.db, "A", 0, "4.00")
	b := testutil.SeedProduct(t, env.db, "B", 0, "1.00")

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/requirements", env.storeTok, map[string]any{
		"department": "Maintenance",
		"date":       "2024-05-01",
		"needed_by":  "2024-05-10",
		"details": []map[string]any{
			{"product_id": a.ID, "quantity": 3},
			{"product_id": b.ID, "quantity": 10, "note": "urgent"},
		},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var req models.Requirement
	testutil.Decode(t, resp, &req)
	assert.Equal(t, "REQ-000001", req.Code)
	assert.Equal(t, models.RequirementPending, req.Status)
	require.Len(t, req.Details, 2)

	// edit while pending
	resp = testutil.Do(t, env.app, http.MethodPut, "/api/requirements/"+idStr(req.ID), env.storeTok, map[string]any{
		"department": "Maintenance",
		"date":       "2024-05-01",
		"details": []map[string]any{
			{"product_id": a.ID, "quantity": 2},
			{"product_id": b.ID, "quantity": 10},
		},
	})
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &req)
	assert.Equal(t, 2.0, req.Details[0].Quantity)

	// ordering before approval is refused
	resp = testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders/from-requirement/"+idStr(req.ID), env.buyerTok, map[string]any{
		"supplier_id": supplier.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/requirements/"+idStr(req.ID)+"/approve", env.storeTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/requirements/"+idStr(req.ID)+"/approve", env.adminTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &req)
	assert.Equal(t, models.RequirementApproved, req.Status)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/requirements/"+idStr(req.ID)+"/reject", env.adminTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPut, "/api/requirements/"+idStr(req.ID), env.storeTok, map[string]any{
		"department": "Other",
		"details":    []map[string]any{{"product_id": a.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "approved requirements are frozen")

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders/from-requirement/"+idStr(req.ID), env.buyerTok, map[string]any{
		"supplier_id": supplier.ID,
		"prices":      map[string]string{idStr(b.ID): "0.90"},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	var order models.PurchaseOrder
	testutil.Decode(t, resp, &order)
	require.NotNil(t, order.RequirementID)
	assert.Equal(t, req.ID, *order.RequirementID)
	require.Len(t, order.Details, 2)
	// 2 x 4.00 (product cost) + 10 x 0.90
	assert.True(t, decimal.RequireFromString("17").Equal(order.Total), "total %s", order.Total)

	assert.Equal(t, models.RequirementOrdered, env.requirementStatus(t, req.ID))

	// deleting the untouched order gives the requirement back
	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/purchase-orders/"+idStr(order.ID), env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusNoContent)
	assert.Equal(t, models.RequirementApproved, env.requirementStatus(t, req.ID))
}

func TestRequirementRejectAndDelete(t *testing.T) {
	env := setup(t)
	a := testutil.SeedProduct(t, env.db, "A", 0, "1")

	create := func() models.Requirement {
		resp := testutil.Do(t, env.app, http.MethodPost, "/api/requirements", env.buyerTok, map[string]any{
			"department": "Office",
			"details":    []map[string]any{{"product_id": a.ID, "quantity": 1}},
		})
		testutil.RequireStatus(t, resp, http.StatusCreated)
		var r models.Requirement
		testutil.Decode(t, resp, &r)
		return r
	}

	first := create()
	resp := testutil.Do(t, env.app, http.MethodPost, "/api/requirements/"+idStr(first.ID)+"/reject", env.adminTok, map[string]any{
		"reason": "budget",
	})
	testutil.RequireStatus(t, resp, http.StatusOK)
	var rejected models.Requirement
	testutil.Decode(t, resp, &rejected)
	assert.Equal(t, models.RequirementRejected, rejected.Status)
	assert.Contains(t, rejected.Note, "budget")

	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/requirements/"+idStr(first.ID), env.buyerTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	second := create()
	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/requirements/"+idStr(second.ID), env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusNoContent)

	var details int64
	env.db.Model(&models.RequirementDetail{}).Where("requirement_id = ?", second.ID).Count(&details)
	assert.Zero(t, details)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/requirements?status=rejected", env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	var list []models.Requirement
	testutil.Decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestPurchaseOrderRules(t *testing.T) {
	env := setup(t)
	supplier := testutil.SeedSupplier(t, env.db, "ACME")
	a := testutil.SeedProduct(t, env.db, "A", 0, "1")

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders", env.buyerTok, map[string]any{
		"supplier_id": 999,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 1, "unit_price": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders", env.buyerTok, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 1, "unit_price": "-1"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders", env.storeTok, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 1, "unit_price": 1}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	order := env.createOrder(t, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 3, "unit_price": "1.333"}},
	})
	assert.True(t, decimal.RequireFromString("4").Equal(order.Total), "line subtotal rounds to cents")

	resp = testutil.Do(t, env.app, http.MethodPut, "/api/purchase-orders/"+idStr(order.ID), env.buyerTok, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 5, "unit_price": 2}},
	})
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &order)
	assert.True(t, decimal.RequireFromString("10").Equal(order.Total))
	assert.Equal(t, "PO-000001", order.Code)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": a.ID, "quantity": 1}},
	})
	testutil.RequireStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = testutil.Do(t, env.app, http.MethodPut, "/api/purchase-orders/"+idStr(order.ID), env.buyerTok, map[string]any{
		"supplier_id": supplier.ID,
		"details":     []map[string]any{{"product_id": a.ID, "quantity": 9, "unit_price": 2}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/purchase-orders/"+idStr(order.ID)+"/cancel", env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	testutil.Decode(t, resp, &order)
	assert.Equal(t, models.PurchaseOrderCancelled, order.Status)
	assert.Equal(t, 1.0, env.stockOf(t, a.ID), "cancelling keeps goods already received")

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/receptions", env.storeTok, map[string]any{
		"purchase_order_id": order.ID,
		"details":           []map[string]any{{"product_id": a.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/purchase-orders?status=cancelled", env.buyerTok, nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	var list []models.PurchaseOrder
	testutil.Decode(t, resp, &list)
	assert.Len(t, list, 1)
}

func (e *testEnv) requirementStatus(t *testing.T, id uint) models.RequirementStatus {
	t.Helper()
	var r models.Requirement
	require.NoError(t, e.db.First(&r, id).Error)
	return r.Status
}
