package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lingohub/internal/errs"
	obscontext "github.com/smallbiznis/lingohub/internal/observability/context"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys copied onto the span when a handler set them.
var spanEntityKeys = []string{"booking_id", "subscription_id", "payment_provider"}

// GinMiddleware opens a server span per request, continuing any upstream
// trace from the propagation headers.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("lingohub/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)

		// Handlers and later middleware replace the request context.
		reqCtx := c.Request.Context()
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if cid := correlation.ExtractCorrelationID(reqCtx); cid != "" {
			span.SetAttributes(attribute.String("correlation_id", cid))
		}
		for _, key := range spanEntityKeys {
			if value := c.GetString(key); value != "" {
				span.SetAttributes(attribute.String(key, value))
			}
		}

		lastErr := c.Errors.Last()
		if lastErr != nil {
			span.SetAttributes(
				attribute.String("error.kind", string(errs.KindOf(lastErr.Err))),
				attribute.String("error.code", errs.CodeOf(lastErr.Err)),
			)
		}
		if status >= http.StatusInternalServerError {
			// Codes only; messages can carry student or payment details.
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
