package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StockMovements counts committed inventory movements by type.
	StockMovements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Inventory movements written, by movement type",
		},
		[]string{"type"},
	)

	StockQuantity = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_moved_quantity_total",
			Help: "Absolute quantity moved in or out of stock",
		},
		[]string{"direction"},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Movement events that could not be published",
		},
	)
)

// Middleware records request count and latency. The route template is used as the path
// label so ids do not explode the series count. Label values outlive the request, so they
// are copied out of Fiber's reused buffers.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		path := utils.CopyString(c.Route().Path)
		if path == "" {
			path = "unmatched"
		}
		method := utils.CopyString(c.Method())

		RequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

// ObserveMovement is called after a movement has been committed.
func ObserveMovement(movementType string, quantity float64) {
	StockMovements.WithLabelValues(movementType).Inc()
	if quantity >= 0 {
		StockQuantity.WithLabelValues("in").Add(quantity)
	} else {
		StockQuantity.WithLabelValues("out").Add(-quantity)
	}
}

// Handler exposes the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
