package rover_nav

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rover-search/internal/logging"
)

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// Metrics exposes live navigator values for scraping. It is a SearchObserver,
// CycleSink and WaypointObserver at once.
type Metrics struct {
	gatherer prometheus.Gatherer

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	SearchEvents  *prometheus.CounterVec
	Outcomes      *prometheus.CounterVec
	Waypoints     *prometheus.CounterVec

	SearchCursor prometheus.Gauge
	SearchPoints prometheus.Gauge
	PoseX        prometheus.Gauge
	PoseY        prometheus.Gauge
	PoseYaw      prometheus.Gauge
	CmdLinear    prometheus.Gauge
	CmdAngular   prometheus.Gauge
}

// NewMetrics registers navigator metrics against reg, defaulting to the
// global registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_nav_cycles_total",
			Help: "Navigator control cycles, labeled by the state that ran.",
		}, []string{"state"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rover_nav_cycle_duration_seconds",
			Help:    "Wall time spent inside one navigator cycle.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SearchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_nav_search_events_total",
			Help: "Spiral search events, labeled by kind.",
		}, []string{"kind"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_nav_search_outcomes_total",
			Help: "Transition labels returned by the search state.",
		}, []string{"outcome"}),
		Waypoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_nav_waypoints_total",
			Help: "Waypoints left by the navigator, labeled by status.",
		}, []string{"status"}),
		SearchCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_nav_search_cursor",
			Help: "Index of the spiral point currently targeted.",
		}),
		SearchPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_nav_search_points",
			Help: "Number of points in the active spiral.",
		}),
		PoseX:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "rover_nav_pose_x", Help: "Rover x position (m)."}),
		PoseY:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "rover_nav_pose_y", Help: "Rover y position (m)."}),
		PoseYaw:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "rover_nav_pose_yaw", Help: "Rover heading (rad)."}),
		CmdLinear:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "rover_nav_cmd_linear", Help: "Last commanded linear speed (m/s)."}),
		CmdAngular: prometheus.NewGauge(prometheus.GaugeOpts{Name: "rover_nav_cmd_angular", Help: "Last commanded angular speed (rad/s)."}),
	}

	collectors := []prometheus.Collector{
		m.Cycles, m.CycleDuration, m.SearchEvents, m.Outcomes, m.Waypoints,
		m.SearchCursor, m.SearchPoints, m.PoseX, m.PoseY, m.PoseYaw, m.CmdLinear, m.CmdAngular,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register navigator metrics: %w", err)
		}
	}
	return m, nil
}

// Hooks returns the navigator hooks backed by these metrics.
func (m *Metrics) Hooks() Hooks {
	if m == nil {
		return Hooks{}
	}
	return Hooks{Search: []SearchObserver{m}, Cycles: []CycleSink{m}, Waypoints: []WaypointObserver{m}}
}

// ObserveSearch implements SearchObserver.
func (m *Metrics) ObserveSearch(_ context.Context, ev SearchEvent) {
	if m == nil {
		return
	}
	m.SearchEvents.WithLabelValues(ev.Kind.String()).Inc()
	if ev.Trajectory != nil {
		m.SearchCursor.Set(float64(ev.Trajectory.Cursor()))
		m.SearchPoints.Set(float64(ev.Trajectory.Len()))
	}
}

// WriteCycle implements CycleSink.
func (m *Metrics) WriteCycle(_ context.Context, s CycleSample) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(s.State.String()).Inc()
	m.CycleDuration.Observe(s.Duration.Seconds())
	if s.Outcome != 0 {
		m.Outcomes.WithLabelValues(s.Outcome.String()).Inc()
	}
	m.PoseX.Set(s.Pose.Position.X)
	m.PoseY.Set(s.Pose.Position.Y)
	m.PoseYaw.Set(s.Pose.Yaw)
	m.CmdLinear.Set(s.Command.Linear)
	m.CmdAngular.Set(s.Command.Angular)
}

// ObserveWaypoint implements WaypointObserver.
func (m *Metrics) ObserveWaypoint(_ context.Context, r WaypointResult) {
	if m == nil {
		return
	}
	m.Waypoints.WithLabelValues(r.Status.String()).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics in the background when enabled. It
// returns nil when metrics are disabled.
func StartMetricsServer(cfg MetricsConfig, m *Metrics, log logging.Logger) *http.Server {
	if !cfg.Enabled || m == nil {
		return nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9108"
	}
	if log == nil {
		log = logging.Noop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(context.Background(), "metrics server error", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "metrics endpoint listening", logging.String("addr", cfg.Addr))
	return server
}
