// Package telemetry streams per-cycle navigator samples to InfluxDB.
package telemetry

import (
	"context"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"rover-search/internal/logging"
	nav "rover-search/rover_nav"
)

// Measurement is the InfluxDB measurement name for cycle samples.
const Measurement = "rover_cycle"

// Writer implements nav.CycleSink. A disabled Writer drops every sample.
type Writer struct {
	client influxdb2.Client
	api    influxdb2_api.WriteAPI
	log    logging.Logger
}

// New connects to InfluxDB when cfg.Enabled is set. Writes are batched and
// asynchronous; write errors are logged.
func New(cfg nav.TelemetryConfig, log logging.Logger) *Writer {
	if log == nil {
		log = logging.Noop()
	}
	w := &Writer{log: log}
	if !cfg.Enabled {
		return w
	}

	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushIntervalMs > 0 {
		opts.SetFlushInterval(cfg.FlushIntervalMs)
	}
	w.client = influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	w.api = w.client.WriteAPI(cfg.Org, cfg.Bucket)

	errorsCh := w.api.Errors()
	go func() {
		for writeErr := range errorsCh {
			log.Error(context.Background(), "error sending data to InfluxDB",
				logging.String("bucket", cfg.Bucket),
				logging.Err(writeErr),
			)
		}
	}()

	log.Info(context.Background(), "influx telemetry enabled",
		logging.String("url", cfg.URL),
		logging.String("bucket", cfg.Bucket),
	)
	return w
}

// Enabled reports whether samples are forwarded.
func (w *Writer) Enabled() bool { return w != nil && w.api != nil }

// WriteCycle implements nav.CycleSink.
func (w *Writer) WriteCycle(_ context.Context, s nav.CycleSample) {
	if !w.Enabled() {
		return
	}
	w.api.WritePoint(CyclePoint(s))
}

// CyclePoint converts a cycle sample to an InfluxDB point.
func CyclePoint(s nav.CycleSample) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("state", s.State.String()).
		AddTag("next_state", s.Next.String()).
		AddTag("marker_id", strconv.Itoa(int(s.MarkerID))).
		AddField("cycle", s.Cycle).
		AddField("waypoint", s.Waypoint).
		AddField("x", s.Pose.Position.X).
		AddField("y", s.Pose.Position.Y).
		AddField("yaw", s.Pose.Yaw).
		AddField("commanded", s.Commanded).
		AddField("linear", s.Command.Linear).
		AddField("angular", s.Command.Angular).
		AddField("cursor", s.Cursor).
		AddField("points", s.Points).
		AddField("duration_us", s.Duration.Microseconds()).
		SetTime(s.At)
	if s.Outcome != 0 {
		p.AddTag("outcome", s.Outcome.String())
	}
	return p
}

// Close flushes pending points and releases the client.
func (w *Writer) Close() {
	if !w.Enabled() {
		return
	}
	w.api.Flush()
	w.client.Close()
}
