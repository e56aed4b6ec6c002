package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units follow UCUM: http://unitsofmeasure.org/ucum.html.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"

	latencySuffix   = "/latency"
	callsSuffix     = "/completed_calls"
	TaskCountSuffix = "/tasks"
)

// Pack reads range from a cache hit to a slow remote bucket.
//
//nolint:gochecknoglobals // histogram boundaries are shared by every view
var latencyBoundaries = []float64{
	0.1, 0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000,
}

func keep(keys ...attribute.Key) attribute.Filter {
	return func(kv attribute.KeyValue) bool {
		for _, k := range keys {
			if kv.Key == k {
				return true
			}
		}
		return false
	}
}

// Views shapes the instruments created under pkg: the latency histogram gets
// explicit buckets plus a derived call counter, and the task counter keeps only
// its kind and outcome.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: pkg + latencySuffix, Kind: sdkmetric.InstrumentKindHistogram},
			sdkmetric.Stream{
				Description:     "Distribution of task latency by method.",
				Aggregation:     sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyBoundaries},
				AttributeFilter: keep(AttrPackageKey, AttrMethodKey),
			},
		),
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+latencySuffix {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:            pkg + callsSuffix,
				Description:     "Count of method calls by method and status.",
				Aggregation:     sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
				AttributeFilter: keep(AttrMethodKey, AttrStatusKey),
			}, true
		},
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: pkg + TaskCountSuffix, Kind: sdkmetric.InstrumentKindCounter},
			sdkmetric.Stream{AttributeFilter: keep(AttrKindKey, AttrOutcomeKey)},
		),
	}
}

func meter(pkg string) metric.Meter {
	return otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))
}

// LatencyMeasure returns the histogram that Tracer.End records span durations in.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	h, err := meter(pkg).Float64Histogram(
		pkg+latencySuffix,
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail here
		panic(fmt.Sprintf("telemetry: latency histogram for %s: %v", pkg, err))
	}
	return h
}

// DimensionlessMeasure returns a counter named pkg+suffix.
func DimensionlessMeasure(pkg, suffix, description string) metric.Int64Counter {
	c, err := meter(pkg).Int64Counter(
		pkg+suffix,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("telemetry: counter %s%s: %v", pkg, suffix, err))
	}
	return c
}
