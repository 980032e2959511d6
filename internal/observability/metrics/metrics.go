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
	reservationTransitions metric.Int64Counter
	paymentsRecorded       metric.Int64Counter
	invoiceEmissions       metric.Int64Counter
	automationRuns         metric.Int64Counter
	searchRequests         metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "posada"
	}
	meter := provider.Meter(name)

	reservationTransitions, err := meter.Int64Counter("posada_reservation_transitions_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("posada_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	invoiceEmissions, err := meter.Int64Counter("posada_invoice_emissions_total")
	if err != nil {
		return nil, err
	}
	automationRuns, err := meter.Int64Counter("posada_automation_runs_total")
	if err != nil {
		return nil, err
	}
	searchRequests, err := meter.Int64Counter("posada_search_requests_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reservationTransitions: reservationTransitions,
		paymentsRecorded:       paymentsRecorded,
		invoiceEmissions:       invoiceEmissions,
		automationRuns:         automationRuns,
		searchRequests:         searchRequests,
	}, nil
}

// RecordReservationTransition increments counts per target status.
func (m *Metrics) RecordReservationTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.reservationTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayment increments payment ledger event counts.
func (m *Metrics) RecordPayment(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceEmission increments emission attempts per outcome.
func (m *Metrics) RecordInvoiceEmission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.invoiceEmissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAutomationRun increments rule evaluations per trigger.
func (m *Metrics) RecordAutomationRun(ctx context.Context, trigger string, matched bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("trigger", strings.TrimSpace(trigger)),
		attribute.Bool("matched", matched),
	)
	m.automationRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSearchRequest increments combination search counts.
func (m *Metrics) RecordSearchRequest(ctx context.Context) {
	if m == nil {
		return
	}
	m.searchRequests.Add(ctx, 1)
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
	"status":     {},
	"event_type": {},
	"outcome":    {},
	"trigger":    {},
	"matched":    {},
	"endpoint":   {},
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
