// Package telemetry sets up the OpenTelemetry meter provider. Counters are
// always readable in-process for the debug endpoint, and are exported over
// OTLP when an endpoint is configured.
package telemetry

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ExporterNone = "none"
	ExporterOTLP = "otlp"
)

var ErrUnknownExporter = errors.New("unknown metrics exporter")

type Config struct {
	ServiceName  string
	Exporter     string // none | otlp
	OTLPEndpoint string // host:port of the collector's OTLP/HTTP receiver
	Insecure     bool
	Interval     time.Duration
}

// Provider owns the meter provider and an in-process reader over it.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	reader        *sdkmetric.ManualReader
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	reader := sdkmetric.NewManualReader()
	opts := []sdkmetric.Option{
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	}

	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterOTLP:
		exporterOpts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "create otlp metric exporter")
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	default:
		return nil, errors.Wrapf(ErrUnknownExporter, "%q", cfg.Exporter)
	}

	return &Provider{
		meterProvider: sdkmetric.NewMeterProvider(opts...),
		reader:        reader,
	}, nil
}

func (p *Provider) MeterProvider() *sdkmetric.MeterProvider { return p.meterProvider }

func (p *Provider) Meter(name string) metric.Meter { return p.meterProvider.Meter(name) }

// Counters sums every int64 counter by instrument name.
func (p *Provider) Counters(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, errors.Wrap(err, "collect metrics")
	}

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums, nil
}

// Shutdown flushes the exporters and stops the readers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}
