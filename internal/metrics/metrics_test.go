package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsSurviveMixedTraffic(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/items", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Delete("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	requests := []struct{ method, path string }{
		{"GET", "/items/1"},
		{"POST", "/items"},
		{"DELETE", "/items/12345"},
	}
	for i := 0; i < 20; i++ {
		for _, r := range requests {
			resp, err := app.Test(httptest.NewRequest(r.method, r.path, nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
		}
	}

	assert.Equal(t, 20.0, testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 20.0, testutil.ToFloat64(RequestCounter.WithLabelValues("POST", "/items", "201")))
	assert.Equal(t, 20.0, testutil.ToFloat64(RequestCounter.WithLabelValues("DELETE", "/items/:id", "204")))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "method" {
					assert.Contains(t, []string{"GET", "POST", "DELETE"}, l.GetValue())
				}
			}
		}
	}
}

func TestObserveMovementSplitsDirection(t *testing.T) {
	in := testutil.ToFloat64(StockQuantity.WithLabelValues("in"))
	out := testutil.ToFloat64(StockQuantity.WithLabelValues("out"))
	adjustments := testutil.ToFloat64(StockMovements.WithLabelValues("adjustment"))

	ObserveMovement("adjustment", 4)
	ObserveMovement("adjustment", -1.5)

	assert.Equal(t, in+4, testutil.ToFloat64(StockQuantity.WithLabelValues("in")))
	assert.Equal(t, out+1.5, testutil.ToFloat64(StockQuantity.WithLabelValues("out")))
	assert.Equal(t, adjustments+2, testutil.ToFloat64(StockMovements.WithLabelValues("adjustment")))
}
