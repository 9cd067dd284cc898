package history

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"botflow/config"
	"botflow/logger"
	"botflow/models"
)

// InfluxSource reads previously recorded ticks out of an InfluxDB bucket.
// Each point is expected to carry close and volume fields tagged by pair.
type InfluxSource struct {
	client      influxdb2.Client
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	log         *logger.Entry
}

func NewInfluxSource(cfg config.InfluxConfig, log *logger.Log) (*InfluxSource, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "ticks"
	}

	return &InfluxSource{
		client:      client,
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: measurement,
		log:         log.WithComponent("history_influx"),
	}, nil
}

func (s *InfluxSource) Close() {
	s.client.Close()
}

func (s *InfluxSource) Ticks(ctx context.Context, pair string, from, to time.Time) ([]models.PriceTick, error) {
	query := fluxQuery(s.bucket, s.measurement, pair, from, to)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks for %s: %w", pair, err)
	}

	var candles []candle
	for result.Next() {
		record := result.Record()
		c := candle{Timestamp: record.Time().UTC()}
		if v, ok := record.ValueByKey("close").(float64); ok {
			c.Close = v
		}
		if v, ok := record.ValueByKey("volume").(float64); ok {
			c.Volume = v
		}
		if c.Close <= 0 {
			continue
		}
		candles = append(candles, c)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("tick query for %s failed mid-stream: %w", pair, result.Err())
	}

	interval := time.Minute
	if len(candles) > 1 {
		interval = candles[1].Timestamp.Sub(candles[0].Timestamp)
	}

	s.log.WithFields(logger.Fields{
		"pair":  pair,
		"ticks": len(candles),
		"from":  from,
		"to":    to,
	}).Info("loaded recorded ticks")

	return enrichTicks(pair, candles, interval), nil
}

func fluxQuery(bucket, measurement, pair string, from, to time.Time) string {
	return fmt.Sprintf(`
from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "%s")
  |> filter(fn: (r) => r.pair == "%s")
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])
`, bucket, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), measurement, pair)
}
