package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/dmitrijs2005/gophid/internal/engine"

// newMeterProvider returns a provider whose data is read once, at the end
// of the run.
func newMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// collectResolutions totals the engine counters as "kind/outcome" and
// "kind/failed".
func collectResolutions(ctx context.Context, reader sdkmetric.Reader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				kind, _ := dp.Attributes.Value(attribute.Key("kind"))
				switch m.Name {
				case "gophid.resolutions":
					outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
					out[kind.AsString()+"/"+outcome.AsString()] += dp.Value
				case "gophid.resolution.failures":
					out[kind.AsString()+"/failed"] += dp.Value
				}
			}
		}
	}
	return out, nil
}
