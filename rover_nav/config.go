package rover_nav

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"rover-search/internal/logging"
	"rover-search/internal/tracing"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LiveConfig controls UDP input settings for pose and marker reports.
type LiveConfig struct {
	UDPAddr    string `mapstructure:"udp_addr" json:"udp_addr"`
	ReadBuffer int    `mapstructure:"read_buffer" json:"read_buffer"`
}

// OutputConfig controls UDP output settings for drive commands.
type OutputConfig struct {
	UDPAddr string `mapstructure:"udp_addr" json:"udp_addr"`
}

// JournalConfig selects where search sessions are recorded.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Driver  string `mapstructure:"driver" json:"driver"` // sqlite | postgres
	DSN     string `mapstructure:"dsn" json:"dsn"`       // sqlite path ("" = in-memory) or postgres DSN
}

// TelemetryConfig controls the InfluxDB per-cycle writer.
type TelemetryConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled"`
	URL             string `mapstructure:"url" json:"url"`
	Token           string `mapstructure:"token" json:"token"`
	Org             string `mapstructure:"org" json:"org"`
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	BatchSize       uint   `mapstructure:"batch_size" json:"batch_size"`
	FlushIntervalMs uint   `mapstructure:"flush_interval_ms" json:"flush_interval_ms"`
}

// WaypointConfig is a course entry. A missing marker_id means no marker.
type WaypointConfig struct {
	X        float64 `mapstructure:"x" json:"x"`
	Y        float64 `mapstructure:"y" json:"y"`
	MarkerID *int    `mapstructure:"marker_id" json:"marker_id"`
}

// CourseConfig lists the waypoints to visit in order.
type CourseConfig struct {
	Waypoints []WaypointConfig `mapstructure:"waypoints" json:"waypoints"`
}

// SimMarker places a marker in the simulated world.
type SimMarker struct {
	ID int     `mapstructure:"id" json:"id"`
	X  float64 `mapstructure:"x" json:"x"`
	Y  float64 `mapstructure:"y" json:"y"`
}

// SimConfig controls the closed-loop simulator.
type SimConfig struct {
	Dt            float64     `mapstructure:"dt" json:"dt"`
	MaxCycles     int         `mapstructure:"max_cycles" json:"max_cycles"`
	StartX        float64     `mapstructure:"start_x" json:"start_x"`
	StartY        float64     `mapstructure:"start_y" json:"start_y"`
	StartYaw      float64     `mapstructure:"start_yaw" json:"start_yaw"`
	Markers       []SimMarker `mapstructure:"markers" json:"markers"`
	ViewRange     float64     `mapstructure:"view_range" json:"view_range"`
	HalfFOVDeg    float64     `mapstructure:"half_fov_deg" json:"half_fov_deg"`
	TrackWidth    float64     `mapstructure:"track_width" json:"track_width"`
	WheelRadius   float64     `mapstructure:"wheel_radius" json:"wheel_radius"`
	MaxWheelSpeed float64     `mapstructure:"max_wheel_speed" json:"max_wheel_speed"`
	MotorDeadband float64     `mapstructure:"motor_deadband" json:"motor_deadband"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Hz         float64         `mapstructure:"hz" json:"hz"`
	StartState string          `mapstructure:"start_state" json:"start_state"`
	Search     SearchConfig    `mapstructure:"search" json:"search"`
	Drive      DriveConfig     `mapstructure:"drive" json:"drive"`
	Traverse   ThresholdConfig `mapstructure:"traverse" json:"traverse"`
	Approach   ThresholdConfig `mapstructure:"approach" json:"approach"`
	Tracker    TrackerConfig   `mapstructure:"tracker" json:"tracker"`
	Course     CourseConfig    `mapstructure:"course" json:"course"`
	Live       LiveConfig      `mapstructure:"live" json:"live"`
	Output     OutputConfig    `mapstructure:"output" json:"output"`
	Metrics    MetricsConfig   `mapstructure:"metrics" json:"metrics"`
	Tracing    tracing.Config  `mapstructure:"tracing" json:"tracing"`
	Journal    JournalConfig   `mapstructure:"journal" json:"journal"`
	Telemetry  TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
	Log        logging.Config  `mapstructure:"log" json:"log"`
	Sim        SimConfig       `mapstructure:"sim" json:"sim"`
}

// setDefaults registers every known key so env overrides and partial files work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hz", 10.0)
	v.SetDefault("start_state", "")

	search := DefaultSearchConfig()
	v.SetDefault("search.turns", search.Turns)
	v.SetDefault("search.step", search.Step)
	v.SetDefault("search.stop_threshold", search.StopThreshold)
	v.SetDefault("search.forward_threshold", search.ForwardThreshold)

	v.SetDefault("drive.max_linear", 1.0)
	v.SetDefault("drive.max_angular", 1.0)
	v.SetDefault("drive.turn_gain", 1.5)

	v.SetDefault("traverse.stop_threshold", 0.5)
	v.SetDefault("traverse.forward_threshold", 0.95)
	v.SetDefault("approach.stop_threshold", 1.0)
	v.SetDefault("approach.forward_threshold", 0.9)

	v.SetDefault("tracker.alpha", 0.6)
	v.SetDefault("tracker.hold_seconds", 0.5)

	v.SetDefault("course.waypoints", []WaypointConfig{})

	v.SetDefault("live.udp_addr", "127.0.0.1:5005")
	v.SetDefault("live.read_buffer", 2048)
	v.SetDefault("output.udp_addr", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9108")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "rover-search")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.dsn", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.url", "http://localhost:8086")
	v.SetDefault("telemetry.token", "")
	v.SetDefault("telemetry.org", "rover")
	v.SetDefault("telemetry.bucket", "navigation")
	v.SetDefault("telemetry.batch_size", 500)
	v.SetDefault("telemetry.flush_interval_ms", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.graylog.enabled", false)
	v.SetDefault("log.graylog.address", "localhost:12201")

	v.SetDefault("sim.dt", 0.1)
	v.SetDefault("sim.max_cycles", 20000)
	v.SetDefault("sim.start_x", 0.0)
	v.SetDefault("sim.start_y", 0.0)
	v.SetDefault("sim.start_yaw", 0.0)
	v.SetDefault("sim.markers", []SimMarker{})
	v.SetDefault("sim.view_range", 4.0)
	v.SetDefault("sim.half_fov_deg", 45.0)
	v.SetDefault("sim.track_width", 0.8)
	v.SetDefault("sim.wheel_radius", 0.13)
	v.SetDefault("sim.max_wheel_speed", 12.0)
	v.SetDefault("sim.motor_deadband", 0.0)
}

// LoadConfig reads the config file at path (JSON, YAML or TOML by extension)
// on top of built-in defaults. ROVER_* environment variables override both,
// e.g. ROVER_SEARCH_TURNS=3. An empty path loads defaults only.
func LoadConfig(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the values the control loop depends on.
func (c AppConfig) Validate() error {
	var problems []string
	if c.Hz <= 0 {
		problems = append(problems, "hz must be > 0")
	}
	if c.Search.Turns < 1 {
		problems = append(problems, "search.turns must be >= 1")
	}
	if c.Search.Step <= 0 {
		problems = append(problems, "search.step must be > 0")
	}
	for name, th := range map[string]ThresholdConfig{
		"search":   {StopThreshold: c.Search.StopThreshold, ForwardThreshold: c.Search.ForwardThreshold},
		"traverse": c.Traverse,
		"approach": c.Approach,
	} {
		if th.StopThreshold <= 0 {
			problems = append(problems, name+".stop_threshold must be > 0")
		}
		if th.ForwardThreshold < -1 || th.ForwardThreshold > 1 {
			problems = append(problems, name+".forward_threshold must be in [-1, 1]")
		}
	}
	if c.Drive.MaxLinear <= 0 || c.Drive.MaxAngular <= 0 {
		problems = append(problems, "drive.max_linear and drive.max_angular must be > 0")
	}
	if c.Tracker.Alpha < 0 || c.Tracker.Alpha >= 1 {
		problems = append(problems, "tracker.alpha must be in [0, 1)")
	}
	if c.StartState != "" {
		if _, err := ParseState(c.StartState); err != nil {
			problems = append(problems, "start_state: "+err.Error())
		}
	}
	switch strings.ToLower(c.Journal.Driver) {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("journal.driver %q is not sqlite or postgres", c.Journal.Driver))
	}
	if len(problems) == 0 {
		return nil
	}
	// map iteration above is unordered
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// Waypoints converts the course section into waypoints.
func (c AppConfig) Waypoints() []Waypoint {
	out := make([]Waypoint, 0, len(c.Course.Waypoints))
	for _, w := range c.Course.Waypoints {
		id := NoMarker
		if w.MarkerID != nil {
			id = MarkerID(*w.MarkerID)
		}
		out = append(out, Waypoint{Position: Point2D{X: w.X, Y: w.Y}, MarkerID: id})
	}
	return out
}

// NavigatorConfig extracts the navigator thresholds and start state. An
// unparsable start state falls back to traversal; Validate reports it.
func (c AppConfig) NavigatorConfig() NavigatorConfig {
	start, _ := ParseState(c.StartState)
	return NavigatorConfig{Search: c.Search, Traverse: c.Traverse, Approach: c.Approach, Start: start}
}
