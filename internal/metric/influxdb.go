package metric

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	log "github.com/sirupsen/logrus"
)

type influx struct {
	client  influxdb2.InfluxDBClient
	bucket  string
	org     string
	metrics []Metric
}

type InfluxdbConfig struct {
	Addr   string
	Token  string
	Bucket string
	Org    string
}

func NewInfluxdb(config InfluxdbConfig) (Client, error) {
	client := influxdb2.NewClient(config.Addr, config.Token)

	return &influx{client: client, bucket: config.Bucket, org: config.Org}, nil
}

func (i *influx) Add(metric Metric) {
	i.metrics = append(i.metrics, metric)
}

func (i *influx) Send(metrics ...*influxdb2.Point) {
	if err := i.client.WriteApiBlocking(i.org, i.bucket).WritePoint(context.Background(), metrics...); err != nil {
		log.WithError(err).Debug("unable to send metrics")
	}
}

// Ticker flushes every registered metric on a fixed period until ctx ends.
func (i *influx) Ticker(ctx context.Context, duration time.Duration) {
	ticker := time.NewTicker(duration)

	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-ticker.C:
			metrics := make([]*influxdb2.Point, len(i.metrics))
			for idx, metric := range i.metrics {
				metrics[idx] = metric.Metric()
			}
			i.Send(metrics...)
		}
	}
}
