package database

import (
	"context"
	"fmt"
	"time"

	"dispatch-bench/internal/config"
	"dispatch-bench/internal/hostinfo"
	"dispatch-bench/internal/logging"
	"dispatch-bench/internal/stats"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// RunMetadata describes one benchmark run for the results database.
type RunMetadata struct {
	CaseName  string
	Backend   string
	Outcome   string
	StartTime time.Time
	EndTime   time.Time
	Config    config.RunConfiguration
}

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

func NewInfluxDBClient(cfg config.DatabaseConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		return nil, err
	}
	if health.Status != "pass" {
		logger.WithFields(logrus.Fields{
			"host":   cfg.Host,
			"status": health.Status,
		}).Error("InfluxDB health check failed")
		return nil, fmt.Errorf("influxdb health check failed: %s", health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Name,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Name),
		bucket:   cfg.Name,
		org:      cfg.Org,
	}, nil
}

// WriteRun exports the sample sequence and a metadata point for one run.
// One point per sample keeps the raw, unaggregated values queryable; all
// aggregation stays in the database layer.
func (idb *InfluxDBClient) WriteRun(meta *RunMetadata, statistics *stats.Statistics) error {
	ctx := context.Background()
	host := hostinfo.Get()

	tags := map[string]string{
		"case":      meta.CaseName,
		"backend":   meta.Backend,
		"hostname":  host.Hostname,
		"unit":      string(statistics.Unit()),
		"kind":      string(statistics.Kind()),
		"run_start": meta.StartTime.Format(time.RFC3339),
	}

	var points []*write.Point
	for i, value := range statistics.Samples() {
		point := influxdb2.NewPoint("dispatch_samples",
			tags,
			map[string]interface{}{
				"iteration": i,
				"value":     value,
			},
			meta.StartTime.Add(time.Duration(i)*time.Nanosecond))
		points = append(points, point)
	}

	if len(points) > 0 {
		if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("failed to write sample points: %w", err)
		}
	}

	metaPoint := influxdb2.NewPoint("dispatch_runs",
		map[string]string{
			"case":    meta.CaseName,
			"backend": meta.Backend,
		},
		map[string]interface{}{
			"outcome":                 meta.Outcome,
			"samples":                 statistics.Count(),
			"kernel_execution_time":   meta.Config.KernelExecutionTime,
			"num_kernels":             meta.Config.NumKernels,
			"iterations":              meta.Config.Iterations,
			"in_order_queue":          meta.Config.InOrderQueue,
			"discard_events":          meta.Config.DiscardEvents,
			"measure_completion_time": meta.Config.MeasureCompletionTime,
			"duration_seconds":        meta.EndTime.Sub(meta.StartTime).Seconds(),
			"hostname":                host.Hostname,
			"cpu_model":               host.CPUModel,
			"cpu_vendor":              host.CPUVendor,
			"kernel_version":          host.KernelVersion,
			"online_cpus":             host.OnlineCPUs,
		},
		meta.EndTime)

	if err := idb.writeAPI.WritePoint(ctx, metaPoint); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}

	return nil
}

func (idb *InfluxDBClient) Close() {
	idb.client.Close()
}
