package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrijs2005/gophid/internal/resolver"
)

type metrics struct {
	resolutions metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics(m metric.Meter) (*metrics, error) {
	out := &metrics{}
	var err error

	out.resolutions, err = m.Int64Counter(
		"gophid.resolutions",
		metric.WithDescription("Identifier resolutions by kind and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolutions counter: %w", err)
	}

	out.failures, err = m.Int64Counter(
		"gophid.resolution.failures",
		metric.WithDescription("Identifier resolutions that returned an error"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	out.duration, err = m.Float64Histogram(
		"gophid.resolution.duration",
		metric.WithDescription("Time spent resolving one identifier"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return out, nil
}

func (m *metrics) record(ctx context.Context, kind string, out resolver.Outcome, err error, d time.Duration) {
	kindAttr := attribute.String("kind", kind)
	m.duration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(kindAttr))
	if err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(kindAttr))
		return
	}
	m.resolutions.Add(ctx, 1, metric.WithAttributes(kindAttr, attribute.String("outcome", string(out))))
}
