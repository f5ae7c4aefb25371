package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("booking_id", "123"),
		attribute.String("student_id", "456"),
		attribute.String("event_type", "PAYMENT_SUCCEEDED"),
		attribute.String("outcome", "applied"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "booking_id" || attr.Key == "student_id" {
			t.Fatalf("high-cardinality label %s should be dropped", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordBookingCreated(context.Background(), "TIER")
	m.RecordPaymentTransition(context.Background(), "PAYMENT_SUCCEEDED", "noop")

	NewNoop().RecordGatewayCall(context.Background(), "stripe", "create_checkout", "ok")
}
