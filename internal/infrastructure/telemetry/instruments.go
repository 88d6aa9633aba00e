package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys. Seller ids go on low-volume business counters only.
var (
	AttrSellerID       = attribute.Key("seller_id")
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")
	AttrCurrency       = attribute.Key("currency")
	AttrBlockCategory  = attribute.Key("block_category")
	AttrVatOutcome     = attribute.Key("vat_outcome")
	AttrEnqueueOutcome = attribute.Key("enqueue_outcome")
)

// LatencyBuckets are request latency boundaries in seconds.
var LatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Instruments registers instruments on one meter. The first failure is
// kept and reported by Err; later registrations are skipped and hand back
// no-op instruments.
type Instruments struct {
	meter metric.Meter
	err   error
}

func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

// Err returns the first registration failure.
func (in *Instruments) Err() error { return in.err }

func (in *Instruments) fail(kind, name string, err error) {
	if in.err == nil {
		in.err = fmt.Errorf("register %s %s: %w", kind, name, err)
	}
}

// Counter registers a monotonic count.
func (in *Instruments) Counter(name, description, unit string) Counter {
	if in.err != nil {
		return Counter{}
	}
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("counter", name, err)
		return Counter{}
	}
	return Counter{c}
}

// Histogram registers a float distribution. No bounds keep the SDK buckets.
func (in *Instruments) Histogram(name, description, unit string, bounds ...float64) Histogram {
	if in.err != nil {
		return Histogram{}
	}
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail("histogram", name, err)
		return Histogram{}
	}
	return Histogram{h}
}

// Gauge registers an int gauge whose reading is pulled from read at every
// collection.
func (in *Instruments) Gauge(name, description, unit string, read func() int64) metric.Registration {
	if in.err != nil {
		return nil
	}
	g, err := in.meter.Int64ObservableGauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("gauge", name, err)
		return nil
	}
	reg, err := in.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(g, read())
		return nil
	}, g)
	if err != nil {
		in.fail("gauge callback", name, err)
		return nil
	}
	return reg
}

// UpDownCounter registers a count that can fall.
func (in *Instruments) UpDownCounter(name, description, unit string) UpDownCounter {
	if in.err != nil {
		return UpDownCounter{}
	}
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("up-down counter", name, err)
		return UpDownCounter{}
	}
	return UpDownCounter{c}
}

// Counter is a monotonic count. The zero Counter discards.
type Counter struct{ c metric.Int64Counter }

func (c Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if c.c != nil {
		c.c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

func (c Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) { c.Add(ctx, 1, attrs...) }

// Histogram is a float distribution. The zero Histogram discards.
type Histogram struct{ h metric.Float64Histogram }

func (h Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	if h.h != nil {
		h.h.Record(ctx, v, metric.WithAttributes(attrs...))
	}
}

// Since records the seconds elapsed from start.
func (h Histogram) Since(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), attrs...)
}

// UpDownCounter is a count that can fall. The zero value discards.
type UpDownCounter struct{ c metric.Int64UpDownCounter }

func (u UpDownCounter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if u.c != nil {
		u.c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}
