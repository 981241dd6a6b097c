package rover_nav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"rover-search/internal/logging"
)

// SimRover is a kinematic differential-drive rover. Commands take effect on
// the next Step and are cleared afterwards, so a rover that stops receiving
// commands stops moving.
type SimRover struct {
	pose     Pose
	base     DiffDrive
	pending  DriveCommand
	commands int
}

// NewSimRover places a simulated rover at start.
func NewSimRover(start Pose, base DiffDrive) *SimRover {
	return &SimRover{pose: start, base: base}
}

// Pose implements Rover.
func (r *SimRover) Pose() Pose { return r.pose }

// SendDriveCommand implements Rover.
func (r *SimRover) SendDriveCommand(cmd DriveCommand) {
	r.pending = cmd
	r.commands++
}

// Commands is the number of drive commands received so far.
func (r *SimRover) Commands() int { return r.commands }

// Step integrates the pending command over dt seconds.
func (r *SimRover) Step(dt float64) {
	tw := r.pending
	if r.base.TrackWidth > 0 && r.base.WheelRadius > 0 {
		tw = r.base.Realize(tw)
	}
	midYaw := r.pose.Yaw + tw.Angular*dt/2
	r.pose.Position.X += tw.Linear * math.Cos(midYaw) * dt
	r.pose.Position.Y += tw.Linear * math.Sin(midYaw) * dt
	r.pose.Yaw = wrapAngle(r.pose.Yaw + tw.Angular*dt)
	r.pending = DriveCommand{}
}

// SimEnvironment reports the current waypoint's marker when it is inside the
// rover's camera cone.
type SimEnvironment struct {
	rover     Rover
	course    Course
	markers   map[MarkerID]Point3D
	viewRange float64
	halfFOV   float64 // radians, <= 0 sees all around
}

// NewSimEnvironment builds a world from configured markers.
func NewSimEnvironment(rover Rover, course Course, markers []SimMarker, viewRange, halfFOVDeg float64) *SimEnvironment {
	m := make(map[MarkerID]Point3D, len(markers))
	for _, mk := range markers {
		m[MarkerID(mk.ID)] = Point3D{X: mk.X, Y: mk.Y}
	}
	return &SimEnvironment{
		rover:     rover,
		course:    course,
		markers:   m,
		viewRange: viewRange,
		halfFOV:   halfFOVDeg * math.Pi / 180,
	}
}

// CurrentMarkerPosition implements Environment.
func (e *SimEnvironment) CurrentMarkerPosition() (Point3D, bool) {
	wp, err := e.course.CurrentWaypoint()
	if err != nil || !wp.HasMarker() {
		return Point3D{}, false
	}
	mk, ok := e.markers[wp.MarkerID]
	if !ok {
		return Point3D{}, false
	}
	pose := e.rover.Pose()
	dx := mk.X - pose.Position.X
	dy := mk.Y - pose.Position.Y
	if math.Hypot(dx, dy) > e.viewRange {
		return Point3D{}, false
	}
	if e.halfFOV > 0 && math.Abs(wrapAngle(math.Atan2(dy, dx)-pose.Yaw)) > e.halfFOV {
		return Point3D{}, false
	}
	return mk, true
}

// SimResult summarises a simulation run.
type SimResult struct {
	Cycles    int
	Done      bool
	FinalPose Pose
	Elapsed   time.Duration // simulated
	Results   []WaypointResult
}

// Counts tallies waypoint results by status.
func (r SimResult) Counts() map[WaypointStatus]int {
	out := make(map[WaypointStatus]int, 3)
	for _, res := range r.Results {
		out[res.Status]++
	}
	return out
}

// RunSimulation drives the configured course in a closed loop until every
// waypoint is handled, the cycle budget runs out, or ctx is cancelled.
func RunSimulation(ctx context.Context, cfg AppConfig, hooks Hooks, log logging.Logger) (SimResult, error) {
	if log == nil {
		log = logging.Noop()
	}
	sc := cfg.Sim
	if sc.Dt <= 0 {
		return SimResult{}, fmt.Errorf("%w: sim.dt must be > 0", ErrInvalidConfig)
	}
	if sc.MaxCycles <= 0 {
		return SimResult{}, fmt.Errorf("%w: sim.max_cycles must be > 0", ErrInvalidConfig)
	}
	waypoints := cfg.Waypoints()
	if len(waypoints) == 0 {
		return SimResult{}, fmt.Errorf("%w: course.waypoints is empty", ErrInvalidConfig)
	}

	course := NewCourseStore(waypoints)
	rover := NewSimRover(
		Pose{Position: Point3D{X: sc.StartX, Y: sc.StartY}, Yaw: sc.StartYaw},
		DiffDrive{
			TrackWidth:    sc.TrackWidth,
			WheelRadius:   sc.WheelRadius,
			MaxWheelSpeed: sc.MaxWheelSpeed,
			Deadband:      sc.MotorDeadband,
		},
	)
	env := NewSimEnvironment(rover, course, sc.Markers, sc.ViewRange, sc.HalfFOVDeg)

	step := time.Duration(sc.Dt * float64(time.Second))
	epoch := time.Now().UTC()
	var simTime time.Duration
	clock := func() time.Time { return epoch.Add(simTime) }

	nav := NewNavigator(cfg.NavigatorConfig(), course, rover, env, NewDriveFunc(cfg.Drive),
		WithNavigatorLogger(log),
		WithHooks(hooks),
		WithClock(clock),
	)

	log.Info(ctx, "simulation started",
		logging.Int("waypoints", len(waypoints)),
		logging.Int("markers", len(sc.Markers)),
		logging.Float("dt", sc.Dt),
	)

	res := SimResult{}
	for res.Cycles < sc.MaxCycles {
		if err := ctx.Err(); err != nil {
			return finishSim(res, nav, rover, simTime), err
		}
		state, err := nav.Step(ctx)
		if err != nil {
			return finishSim(res, nav, rover, simTime), fmt.Errorf("cycle %d: %w", res.Cycles, err)
		}
		rover.Step(sc.Dt)
		simTime += step
		res.Cycles++
		if state == StateDone {
			res.Done = true
			break
		}
	}

	res = finishSim(res, nav, rover, simTime)
	if !res.Done {
		log.Warn(ctx, "simulation stopped before the course completed",
			logging.Int("cycles", res.Cycles),
			logging.Int("waypoint", course.Index()),
		)
		return res, ErrCycleBudget
	}
	log.Info(ctx, "simulation finished",
		logging.Int("cycles", res.Cycles),
		logging.Float("sim_seconds", res.Elapsed.Seconds()),
	)
	return res, nil
}

// ErrCycleBudget is returned when a simulation runs out of cycles.
var ErrCycleBudget = errors.New("simulation cycle budget exhausted")

func finishSim(res SimResult, nav *Navigator, rover *SimRover, elapsed time.Duration) SimResult {
	res.FinalPose = rover.Pose()
	res.Elapsed = elapsed
	res.Results = nav.Results()
	return res
}
