package rover_nav

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rover-search/internal/logging"
)

var tracer = otel.Tracer("rover-search/rover_nav")

// WaypointStatus records how a waypoint was left.
type WaypointStatus int

const (
	WaypointReached WaypointStatus = iota + 1
	WaypointMarkerFound
	WaypointMissed
)

func (s WaypointStatus) String() string {
	switch s {
	case WaypointReached:
		return "reached"
	case WaypointMarkerFound:
		return "marker_found"
	case WaypointMissed:
		return "missed"
	default:
		return fmt.Sprintf("WaypointStatus(%d)", int(s))
	}
}

// WaypointResult is emitted whenever the navigator leaves a waypoint.
type WaypointResult struct {
	Index    int
	Waypoint Waypoint
	Status   WaypointStatus
	Cycle    int
	At       time.Time
}

// CycleSample summarises one navigator cycle for metrics and telemetry.
type CycleSample struct {
	At        time.Time
	Cycle     int
	State     State // state that ran this cycle
	Next      State
	Outcome   Outcome // zero unless the search state ran
	Pose      Pose
	Waypoint  int
	MarkerID  MarkerID
	Cursor    int
	Points    int
	Commanded bool
	Command   DriveCommand
	Duration  time.Duration
}

// CycleSink receives one sample per navigator cycle.
type CycleSink interface {
	WriteCycle(ctx context.Context, s CycleSample)
}

// WaypointObserver receives waypoint results.
type WaypointObserver interface {
	ObserveWaypoint(ctx context.Context, r WaypointResult)
}

// Hooks collects optional navigator listeners.
type Hooks struct {
	Search    []SearchObserver
	Cycles    []CycleSink
	Waypoints []WaypointObserver
}

// Merge returns hooks containing the listeners of both.
func (h Hooks) Merge(o Hooks) Hooks {
	return Hooks{
		Search:    append(append([]SearchObserver{}, h.Search...), o.Search...),
		Cycles:    append(append([]CycleSink{}, h.Cycles...), o.Cycles...),
		Waypoints: append(append([]WaypointObserver{}, h.Waypoints...), o.Waypoints...),
	}
}

// MutableCourse is a Course the host can advance.
type MutableCourse interface {
	Course
	Index() int
	Advance() bool
}

// NavigatorConfig holds per-behaviour thresholds.
type NavigatorConfig struct {
	Search   SearchConfig
	Traverse ThresholdConfig
	Approach ThresholdConfig
	Start    State
}

// Navigator is a minimal host state machine around the search behaviour:
// traverse to a waypoint, spiral search for its marker, approach the marker.
type Navigator struct {
	cfg    NavigatorConfig
	course MutableCourse
	rover  *commandRecorder
	env    Environment
	drive  DriveFunc
	search *SearchController
	hooks  Hooks
	log    logging.Logger
	now    func() time.Time

	state   State
	cycle   int
	results []WaypointResult
}

// NavigatorOption customises a Navigator.
type NavigatorOption func(*Navigator)

// WithNavigatorLogger sets the logger for the navigator and its search state.
func WithNavigatorLogger(l logging.Logger) NavigatorOption {
	return func(n *Navigator) {
		if l != nil {
			n.log = l
		}
	}
}

// WithHooks registers listeners.
func WithHooks(h Hooks) NavigatorOption {
	return func(n *Navigator) { n.hooks = n.hooks.Merge(h) }
}

// WithClock overrides the timestamp source used for samples and events.
func WithClock(now func() time.Time) NavigatorOption {
	return func(n *Navigator) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNavigator wires a navigator and its search controller.
func NewNavigator(cfg NavigatorConfig, course MutableCourse, rover Rover, env Environment, drive DriveFunc, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		cfg:    cfg,
		course: course,
		rover:  &commandRecorder{Rover: rover},
		env:    env,
		drive:  drive,
		log:    logging.Noop(),
		now:    time.Now,
		state:  StateTraverse,
	}
	for _, opt := range opts {
		opt(n)
	}
	if cfg.Start != 0 {
		n.state = cfg.Start
	}

	n.search = NewSearchController(cfg.Search,
		NavContext{Course: course, Rover: n.rover, Env: env},
		drive,
		WithSearchLogger(n.log.With(logging.String("behaviour", "search"))),
		WithSearchObserver(MultiObserver(n.hooks.Search)),
		WithSearchClock(func() time.Time { return n.now() }),
	)
	return n
}

// State is the behaviour that will run on the next cycle.
func (n *Navigator) State() State { return n.state }

// Cycle is the number of completed cycles.
func (n *Navigator) Cycle() int { return n.cycle }

// Search exposes the search behaviour.
func (n *Navigator) Search() *SearchController { return n.search }

// Results returns a copy of the waypoint results so far.
func (n *Navigator) Results() []WaypointResult {
	out := make([]WaypointResult, len(n.results))
	copy(out, n.results)
	return out
}

// Step runs one control cycle and returns the state for the next cycle.
func (n *Navigator) Step(ctx context.Context) (State, error) {
	start := time.Now()
	ran := n.state
	ctx, span := tracer.Start(ctx, "navigator.step")
	defer span.End()
	span.SetAttributes(
		attribute.Int("cycle", n.cycle),
		attribute.String("state", ran.String()),
	)

	n.rover.reset()

	var outcome Outcome
	var err error
	switch n.state {
	case StateTraverse:
		err = n.stepTraverse(ctx)
	case StateSearch:
		outcome, err = n.stepSearch(ctx)
	case StateApproach:
		err = n.stepApproach(ctx)
	case StateDone:
	default:
		err = fmt.Errorf("navigator: unknown state %v", n.state)
	}
	if errors.Is(err, ErrCourseComplete) {
		n.state = StateDone
		err = nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n.state, err
	}

	if outcome != 0 {
		span.SetAttributes(attribute.String("outcome", outcome.String()))
	}
	span.SetAttributes(attribute.String("next_state", n.state.String()))

	n.writeSample(ctx, ran, outcome, time.Since(start))
	n.cycle++
	return n.state, nil
}

func (n *Navigator) stepTraverse(ctx context.Context) error {
	wp, err := n.course.CurrentWaypoint()
	if err != nil {
		return err
	}
	cmd, arrived, err := n.drive(wp.Position.Lift(), n.rover.Pose(), n.cfg.Traverse.StopThreshold, n.cfg.Traverse.ForwardThreshold)
	if err != nil {
		return err
	}
	n.rover.SendDriveCommand(cmd)
	if !arrived {
		return nil
	}
	if wp.HasMarker() {
		n.log.Info(ctx, "arrived at waypoint, starting search",
			logging.Int("waypoint", n.course.Index()),
			logging.Int("marker_id", int(wp.MarkerID)),
		)
		n.state = StateSearch
		return nil
	}
	n.finishWaypoint(ctx, wp, WaypointReached)
	return nil
}

func (n *Navigator) stepSearch(ctx context.Context) (Outcome, error) {
	wp, err := n.course.CurrentWaypoint()
	if err != nil {
		return 0, err
	}
	outcome, err := n.search.Evaluate(ctx)
	if err != nil {
		return 0, err
	}
	switch outcome {
	case OutcomeHandoffToFiducial:
		n.state = StateApproach
	case OutcomeResumeCourse:
		n.finishWaypoint(ctx, wp, WaypointMissed)
	}
	return outcome, nil
}

func (n *Navigator) stepApproach(ctx context.Context) error {
	wp, err := n.course.CurrentWaypoint()
	if err != nil {
		return err
	}
	pos, ok := n.env.CurrentMarkerPosition()
	if !ok {
		n.log.Warn(ctx, "marker lost during approach, resuming search",
			logging.Int("marker_id", int(wp.MarkerID)),
		)
		n.state = StateSearch
		return nil
	}
	cmd, arrived, err := n.drive(pos, n.rover.Pose(), n.cfg.Approach.StopThreshold, n.cfg.Approach.ForwardThreshold)
	if err != nil {
		return err
	}
	n.rover.SendDriveCommand(cmd)
	if arrived {
		n.finishWaypoint(ctx, wp, WaypointMarkerFound)
	}
	return nil
}

func (n *Navigator) finishWaypoint(ctx context.Context, wp Waypoint, status WaypointStatus) {
	res := WaypointResult{
		Index:    n.course.Index(),
		Waypoint: wp,
		Status:   status,
		Cycle:    n.cycle,
		At:       n.now(),
	}
	n.results = append(n.results, res)
	n.log.Info(ctx, "waypoint finished",
		logging.Int("waypoint", res.Index),
		logging.Int("marker_id", int(wp.MarkerID)),
		logging.String("status", status.String()),
	)
	for _, o := range n.hooks.Waypoints {
		if o != nil {
			o.ObserveWaypoint(ctx, res)
		}
	}

	n.search.Reset(ctx)
	if n.course.Advance() {
		n.state = StateDone
		return
	}
	n.state = StateTraverse
}

func (n *Navigator) writeSample(ctx context.Context, ran State, outcome Outcome, d time.Duration) {
	if len(n.hooks.Cycles) == 0 {
		return
	}
	s := CycleSample{
		At:        n.now(),
		Cycle:     n.cycle,
		State:     ran,
		Next:      n.state,
		Outcome:   outcome,
		Pose:      n.rover.Pose(),
		Waypoint:  n.course.Index(),
		MarkerID:  NoMarker,
		Commanded: n.rover.sent,
		Command:   n.rover.last,
		Duration:  d,
	}
	if wp, err := n.course.CurrentWaypoint(); err == nil {
		s.MarkerID = wp.MarkerID
	}
	if t := n.search.Trajectory(); t != nil {
		s.Cursor = t.Cursor()
		s.Points = t.Len()
	}
	for _, sink := range n.hooks.Cycles {
		if sink != nil {
			sink.WriteCycle(ctx, s)
		}
	}
}

// ParseState converts a state name into a State.
func ParseState(value string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TRAVERSE", "WAYPOINT_TRAVERSE":
		return StateTraverse, nil
	case "SEARCH":
		return StateSearch, nil
	case "APPROACH", "SINGLE_FIDUCIAL":
		return StateApproach, nil
	default:
		return 0, fmt.Errorf("unknown state %q", value)
	}
}

// commandRecorder remembers the last command sent during a cycle.
type commandRecorder struct {
	Rover
	last DriveCommand
	sent bool
}

func (r *commandRecorder) SendDriveCommand(cmd DriveCommand) {
	r.last = cmd
	r.sent = true
	r.Rover.SendDriveCommand(cmd)
}

func (r *commandRecorder) reset() {
	r.last = DriveCommand{}
	r.sent = false
}
