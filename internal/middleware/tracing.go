package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, continuing any incoming trace context.
// The span's context becomes the request's UserContext so handlers and the stock
// bookkeeping attach child spans to it.
func Tracing() fiber.Handler {
	tracer := otel.Tracer("logistics-http")

	return func(c *fiber.Ctx) error {
		carrier := propagation.HeaderCarrier{}
		c.Request().Header.VisitAll(func(k, v []byte) {
			carrier.Set(string(k), string(v))
		})
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)

		// spans are exported after the request buffers are reused
		method := utils.CopyString(c.Method())
		target := utils.CopyString(c.Path())

		ctx, span := tracer.Start(parent, method+" "+target,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("http.target", target),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-Id", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		status := StatusOf(c, err)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if route := c.Route(); route != nil {
			span.SetAttributes(attribute.String("http.route", utils.CopyString(route.Path)))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		if err != nil && status >= 500 {
			span.RecordError(err)
		}
		return err
	}
}

// StatusOf is the status the client will see. A returned error has not been written yet,
// so its code wins over the response's.
func StatusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
