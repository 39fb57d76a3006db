package metric

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
)

type Client interface {
	Add(metric Metric)
	Send(metrics ...*influxdb2.Point)
	Ticker(ctx context.Context, duration time.Duration)
}

// Metric is a row that can render itself as an InfluxDB point.
type Metric interface {
	Metric() *influxdb2.Point
}

type Fields map[string]interface{}

type Tags map[string]string

type RowMetric struct {
	Name string
	Tags Tags
}

func (r *RowMetric) point(fields Fields) *influxdb2.Point {
	return influxdb2.NewPoint(r.Name, r.Tags, fields, time.Now())
}

type CounterMetric struct {
	RowMetric
	Counter int64
}

func (c *CounterMetric) Metric() *influxdb2.Point {
	return c.point(Fields{"counter": c.Counter})
}

type GaugeMetric struct {
	RowMetric
	Gauge float64
}

func (g *GaugeMetric) Metric() *influxdb2.Point {
	return g.point(Fields{"gauge": g.Gauge})
}

type DurationMetric struct {
	RowMetric
	Duration time.Duration
}

func (d *DurationMetric) Metric() *influxdb2.Point {
	return d.point(Fields{"duration_ms": d.Duration.Milliseconds()})
}
