package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	bookingsCreated         metric.Int64Counter
	paymentTransitions      metric.Int64Counter
	gatewayCalls            metric.Int64Counter
	subscriptionTransitions metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lingohub"
	}
	meter := provider.Meter(name)

	bookingsCreated, err := meter.Int64Counter("lingohub_bookings_created_total")
	if err != nil {
		return nil, err
	}
	paymentTransitions, err := meter.Int64Counter("lingohub_payment_transitions_total")
	if err != nil {
		return nil, err
	}
	gatewayCalls, err := meter.Int64Counter("lingohub_gateway_calls_total")
	if err != nil {
		return nil, err
	}
	subscriptionTransitions, err := meter.Int64Counter("lingohub_subscription_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		bookingsCreated:         bookingsCreated,
		paymentTransitions:      paymentTransitions,
		gatewayCalls:            gatewayCalls,
		subscriptionTransitions: subscriptionTransitions,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordBookingCreated counts bookings by how the commission rate was resolved.
func (m *Metrics) RecordBookingCreated(ctx context.Context, rateSource string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("rate_source", strings.TrimSpace(rateSource)))
	m.bookingsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentTransition counts gateway events by outcome (applied, noop, rejected).
func (m *Metrics) RecordPaymentTransition(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGatewayCall counts outbound gateway calls.
func (m *Metrics) RecordGatewayCall(ctx context.Context, provider, operation, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.gatewayCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSubscriptionTransition counts lifecycle transitions.
func (m *Metrics) RecordSubscriptionTransition(ctx context.Context, holder, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("holder", holder),
		attribute.String("from", from),
		attribute.String("to", to),
	)
	m.subscriptionTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"rate_source": {},
	"event_type":  {},
	"outcome":     {},
	"provider":    {},
	"operation":   {},
	"holder":      {},
	"from":        {},
	"to":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
