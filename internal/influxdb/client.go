package influxdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/models"
)

const healthCheckTimeout = 5 * time.Second

// Client represents an InfluxDB v2 client
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	config   config.InfluxDBConfig
	logger   *slog.Logger
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity.
// Writes go through the non-blocking write API, batched per the config;
// write failures surface on the API's error channel and are logged.
func NewClient(cfg config.InfluxDBConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.BatchTimeout.Milliseconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Health check to verify the URL and credentials before consuming.
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	c := &Client{
		client:   client,
		writeAPI: writeAPI,
		config:   cfg,
		logger:   logger,
	}
	go c.logWriteErrors()
	return c, nil
}

// logWriteErrors drains the async write error channel until Close.
func (c *Client) logWriteErrors() {
	for err := range c.writeAPI.Errors() {
		c.logger.Error("influxdb write failed", "error", err)
	}
}

// WritePowerPoints writes derived power triples to InfluxDB. Points whose
// triple is unavailable carry no numeric fields and are skipped; the
// processor accounts for them in the outcome counts.
func (c *Client) WritePowerPoints(points []models.PowerPoint) {
	for _, p := range points {
		if !p.Power.Available() {
			continue
		}
		point := write.NewPoint(
			"power_derivation",
			map[string]string{
				"meter_id": p.MeterID,
			},
			map[string]interface{}{
				"real_power_w":       *p.Power.P,
				"reactive_power_var": *p.Power.Q,
				"apparent_power_va":  *p.Power.S,
			},
			p.Timestamp,
		)

		c.writeAPI.WritePoint(point)
	}
}

// WriteOutcomeCounts writes aggregated resolution outcome counts to InfluxDB
func (c *Client) WriteOutcomeCounts(counts []models.OutcomeCount, timestamp time.Time) {
	for _, count := range counts {
		point := write.NewPoint(
			"resolution_outcomes",
			map[string]string{
				"outcome": count.Outcome,
			},
			map[string]interface{}{
				"count": count.Count,
			},
			timestamp,
		)

		c.writeAPI.WritePoint(point)
	}
}

// WriteIgnoredFields writes aggregated ignored field counts to InfluxDB
func (c *Client) WriteIgnoredFields(counts []models.FieldCount, timestamp time.Time) {
	for _, count := range counts {
		point := write.NewPoint(
			"ignored_fields",
			map[string]string{
				"field": count.Field,
			},
			map[string]interface{}{
				"count": count.Count,
			},
			timestamp,
		)

		c.writeAPI.WritePoint(point)
	}
}

// WritePowerStats writes windowed apparent power statistics to InfluxDB
func (c *Client) WritePowerStats(points []models.PowerStatsPoint) {
	for _, p := range points {
		point := write.NewPoint(
			"power_stats",
			map[string]string{},
			map[string]interface{}{
				"total_va":      p.TotalVA,
				"reading_count": p.ReadingCount,
				"max_va":        p.MaxVA,
				"min_va":        p.MinVA,
				"avg_va":        p.AvgVA,
			},
			p.Timestamp,
		)

		c.writeAPI.WritePoint(point)
	}
}

// Close flushes pending writes and closes the InfluxDB client
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}
