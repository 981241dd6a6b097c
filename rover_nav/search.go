package rover_nav

import (
	"context"
	"fmt"
	"time"

	"rover-search/internal/logging"
)

// SearchConfig holds the spiral shape and drive tolerances used while searching.
type SearchConfig struct {
	Turns            int     `mapstructure:"turns" json:"turns"`
	Step             float64 `mapstructure:"step" json:"step"`
	StopThreshold    float64 `mapstructure:"stop_threshold" json:"stop_threshold"`
	ForwardThreshold float64 `mapstructure:"forward_threshold" json:"forward_threshold"`
}

// DefaultSearchConfig matches the tuning used on the rover.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{Turns: 5, Step: 2, StopThreshold: 0.2, ForwardThreshold: 0.95}
}

// NavContext bundles the collaborators a behaviour state talks to.
type NavContext struct {
	Course Course
	Rover  Rover
	Env    Environment
}

// SearchEventKind classifies controller progress events.
type SearchEventKind int

const (
	EventTrajectoryStarted SearchEventKind = iota + 1
	EventTrajectoryAbandoned
	EventPointReached
	EventExhausted
	EventMarkerSighted
)

func (k SearchEventKind) String() string {
	switch k {
	case EventTrajectoryStarted:
		return "trajectory_started"
	case EventTrajectoryAbandoned:
		return "trajectory_abandoned"
	case EventPointReached:
		return "point_reached"
	case EventExhausted:
		return "exhausted"
	case EventMarkerSighted:
		return "marker_sighted"
	default:
		return fmt.Sprintf("SearchEventKind(%d)", int(k))
	}
}

// SearchEvent describes one step of search progress. Trajectory must be
// treated as read-only by observers.
type SearchEvent struct {
	Kind       SearchEventKind
	At         time.Time
	MarkerID   MarkerID
	Trajectory *SearchTrajectory
	Index      int
	Point      Point3D
}

// SearchObserver receives search progress events.
type SearchObserver interface {
	ObserveSearch(ctx context.Context, ev SearchEvent)
}

// SearchObserverFunc adapts a function to SearchObserver.
type SearchObserverFunc func(ctx context.Context, ev SearchEvent)

func (f SearchObserverFunc) ObserveSearch(ctx context.Context, ev SearchEvent) { f(ctx, ev) }

// MultiObserver fans events out to every non-nil observer in order.
type MultiObserver []SearchObserver

func (m MultiObserver) ObserveSearch(ctx context.Context, ev SearchEvent) {
	for _, o := range m {
		if o != nil {
			o.ObserveSearch(ctx, ev)
		}
	}
}

// SearchController is the spiral search behaviour. It owns at most one
// trajectory and advances it as the rover arrives at each point.
type SearchController struct {
	Cfg      SearchConfig
	nav      NavContext
	drive    DriveFunc
	log      logging.Logger
	observer SearchObserver
	now      func() time.Time
	traj     *SearchTrajectory
	sighted  bool
}

// SearchOption customises a SearchController.
type SearchOption func(*SearchController)

// WithSearchLogger sets the controller logger.
func WithSearchLogger(l logging.Logger) SearchOption {
	return func(s *SearchController) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSearchObserver registers an observer for search events.
func WithSearchObserver(o SearchObserver) SearchOption {
	return func(s *SearchController) { s.observer = o }
}

// WithSearchClock overrides the event timestamp source.
func WithSearchClock(now func() time.Time) SearchOption {
	return func(s *SearchController) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSearchController constructs a controller with the given configuration.
func NewSearchController(cfg SearchConfig, nav NavContext, drive DriveFunc, opts ...SearchOption) *SearchController {
	s := &SearchController{
		Cfg:   cfg,
		nav:   nav,
		drive: drive,
		log:   logging.Noop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trajectory returns the active trajectory, or nil before the first cycle.
func (s *SearchController) Trajectory() *SearchTrajectory { return s.traj }

// Reset drops the active trajectory so the next cycle starts a fresh spiral.
func (s *SearchController) Reset(ctx context.Context) {
	if s.traj == nil {
		return
	}
	s.abandon(ctx)
	s.traj = nil
}

// Evaluate runs one search cycle and returns the transition for the host.
//
// Ordering per cycle:
//   - rebind the trajectory when the waypoint's marker changed
//   - drive toward the current point; an arrival advances the cursor
//   - exhaustion returns OutcomeResumeCourse before any command is sent
//   - the drive command is sent, then a visible marker hands off
func (s *SearchController) Evaluate(ctx context.Context) (Outcome, error) {
	wp, err := s.nav.Course.CurrentWaypoint()
	if err != nil {
		return 0, err
	}

	if s.traj == nil || s.traj.TargetID() != wp.MarkerID {
		if err := s.rebind(ctx, wp); err != nil {
			return 0, err
		}
	}

	pose := s.nav.Rover.Pose()
	target := s.traj.CurrentPoint()
	cmd, arrived, err := s.drive(target, pose, s.Cfg.StopThreshold, s.Cfg.ForwardThreshold)
	if err != nil {
		return 0, err
	}

	if arrived {
		idx := s.traj.Cursor()
		exhausted := s.traj.Advance()
		s.emit(ctx, SearchEvent{Kind: EventPointReached, Index: idx, Point: target})
		s.log.Debug(ctx, "search point reached",
			logging.Int("marker_id", int(wp.MarkerID)),
			logging.Int("index", idx),
			logging.Int("points", s.traj.Len()),
		)
		if exhausted {
			s.emit(ctx, SearchEvent{Kind: EventExhausted, Index: idx, Point: target})
			s.log.Info(ctx, "search spiral exhausted without sighting",
				logging.Int("marker_id", int(wp.MarkerID)),
			)
			return OutcomeResumeCourse, nil
		}
	}

	s.nav.Rover.SendDriveCommand(cmd)

	if wp.HasMarker() {
		if pos, ok := s.nav.Env.CurrentMarkerPosition(); ok {
			s.sighted = true
			s.emit(ctx, SearchEvent{Kind: EventMarkerSighted, Index: s.traj.Cursor(), Point: pos})
			s.log.Info(ctx, "marker sighted during search",
				logging.Int("marker_id", int(wp.MarkerID)),
				logging.Float("x", pos.X),
				logging.Float("y", pos.Y),
			)
			return OutcomeHandoffToFiducial, nil
		}
	}

	return OutcomeContinueSearch, nil
}

// rebind replaces the trajectory with a spiral centred on the rover.
func (s *SearchController) rebind(ctx context.Context, wp Waypoint) error {
	if s.traj != nil {
		s.abandon(ctx)
	}

	center := s.nav.Rover.Pose().Position.XY()
	traj, err := GenerateSpiral(center, s.Cfg.Turns, s.Cfg.Step, wp.MarkerID)
	if err != nil {
		return err
	}
	s.traj = traj
	s.sighted = false

	s.emit(ctx, SearchEvent{Kind: EventTrajectoryStarted, Point: traj.Center()})
	s.log.Info(ctx, "search trajectory started",
		logging.Int("marker_id", int(wp.MarkerID)),
		logging.Float("center_x", center.X),
		logging.Float("center_y", center.Y),
		logging.Int("points", traj.Len()),
	)
	return nil
}

// abandon reports a trajectory dropped before it finished. Spirals that ran
// out or led to a sighting are not abandoned.
func (s *SearchController) abandon(ctx context.Context) {
	if s.traj.Exhausted() || s.sighted {
		return
	}
	s.emit(ctx, SearchEvent{Kind: EventTrajectoryAbandoned, Index: s.traj.Cursor()})
	s.log.Info(ctx, "search trajectory abandoned",
		logging.Int("marker_id", int(s.traj.TargetID())),
		logging.Int("cursor", s.traj.Cursor()),
	)
}

func (s *SearchController) emit(ctx context.Context, ev SearchEvent) {
	if s.observer == nil {
		return
	}
	ev.At = s.now()
	ev.MarkerID = s.traj.TargetID()
	ev.Trajectory = s.traj
	s.observer.ObserveSearch(ctx, ev)
}
