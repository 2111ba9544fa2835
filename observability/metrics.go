package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fantasygolf/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	serviceName    = "fantasygolf"
	exportInterval = 30 * time.Second
)

// Config selects the metrics exporter
type Config struct {
	Exporter     string // "stdout", "otlp" or "none"
	OTLPEndpoint string
	Environment  string
}

// MetricsProvider manages OpenTelemetry metrics for the service
type MetricsProvider struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	ledgerTransactionsCounter     metric.Int64Counter
	ledgerVolumeCounter           metric.Int64Counter
	paymentsIngestedCounter       metric.Int64Counter
	entriesCreatedCounter         metric.Int64Counter
	entriesCancelledCounter       metric.Int64Counter
	instanceTransitionsCounter    metric.Int64Counter
	withdrawalTransitionsCounter  metric.Int64Counter
	statusChangesCounter          metric.Int64Counter
	reconciliationRequiredCounter metric.Int64Counter
	sweepRunsCounter              metric.Int64Counter
	sweepDurationHist             metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	var (
		exporter sdkmetric.Exporter
		err      error
	)

	switch mp.config.Exporter {
	case "stdout":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		log.Info("Using stdout metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTLPEndpoint).Info("Using OTLP metric exporter")

	case "none", "":
		mp.mu.Lock()
		mp.initialized = true
		mp.mu.Unlock()
		log.Info("Metrics export disabled")
		return nil

	default:
		return fmt.Errorf("unknown metrics exporter: %s", mp.config.Exporter)
	}

	return mp.initializeWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)))
}

// initializeWithReader builds the meter provider around reader
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter(serviceName)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&mp.ledgerTransactionsCounter, LedgerTransactionsTotal, "Total number of ledger transactions", "1"},
		{&mp.ledgerVolumeCounter, LedgerVolumeTotal, "Absolute amount moved through the ledger in minor units", "{minor_unit}"},
		{&mp.paymentsIngestedCounter, PaymentsIngestedTotal, "Total number of external payments ingested", "1"},
		{&mp.entriesCreatedCounter, EntriesCreatedTotal, "Total number of paid entries created", "1"},
		{&mp.entriesCancelledCounter, EntriesCancelledTotal, "Total number of entries cancelled and refunded", "1"},
		{&mp.instanceTransitionsCounter, InstanceTransitionsTotal, "Head-to-head instance state transitions", "1"},
		{&mp.withdrawalTransitionsCounter, WithdrawalTransitionsTotal, "Withdrawal request state transitions", "1"},
		{&mp.statusChangesCounter, StatusChangesTotal, "Lifecycle statuses persisted by the reconciliation sweep", "1"},
		{&mp.reconciliationRequiredCounter, ReconciliationRequiredTotal, "Money inconsistencies escalated for an operator", "1"},
		{&mp.sweepRunsCounter, SweepRunsTotal, "Reconciliation sweep runs", "1"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	mp.sweepDurationHist, err = mp.meter.Float64Histogram(
		SweepDuration,
		metric.WithDescription("Duration of reconciliation sweeps in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep duration histogram: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

// Register subscribes the provider to every domain event on bus
func (mp *MetricsProvider) Register(bus *events.Bus) {
	bus.SubscribeAll(mp.HandleEvent)
}

// HandleEvent records the metrics for one committed domain event
func (mp *MetricsProvider) HandleEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.BalanceChangeEvent:
		attrs := metric.WithAttributes(attribute.String(LabelReason, string(e.Reason)))
		mp.ledgerTransactionsCounter.Add(ctx, 1, attrs)
		delta := e.Delta
		if delta < 0 {
			delta = -delta
		}
		mp.ledgerVolumeCounter.Add(ctx, delta, attrs)

	case events.PaymentIngestedEvent:
		mp.paymentsIngestedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelProvider, e.Provider),
			attribute.Bool(LabelReplay, e.AlreadyProcessed),
		))

	case events.EntryCreatedEvent:
		mp.entriesCreatedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelTargetKind, string(e.TargetKind)),
		))

	case events.EntryCancelledEvent:
		mp.entriesCancelledCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelTargetKind, string(e.TargetKind)),
		))

	case events.InstanceStateChangeEvent:
		mp.instanceTransitionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelStatus, string(e.NewStatus)),
		))

	case events.WithdrawalStateChangeEvent:
		mp.withdrawalTransitionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelStatus, string(e.NewStatus)),
		))

	case events.StatusChangeEvent:
		mp.statusChangesCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelSubject, e.Subject),
			attribute.String(LabelStatus, string(e.NewStatus)),
		))

	case events.ReconciliationRequiredEvent:
		mp.reconciliationRequiredCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelKind, string(e.Kind)),
		))
	}
}

// RecordSweep records one reconciliation sweep run
func (mp *MetricsProvider) RecordSweep(outcome string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelOutcome, outcome))
	mp.sweepRunsCounter.Add(context.Background(), 1, attrs)
	mp.sweepDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}
