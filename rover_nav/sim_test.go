package rover_nav

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simConfig(t *testing.T, wps []WaypointConfig, markers []SimMarker) AppConfig {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Course.Waypoints = wps
	cfg.Sim.Markers = markers
	return cfg
}

func markerRef(id int) *int { return &id }

func TestSimRover_IntegratesAndClearsCommand(t *testing.T) {
	r := NewSimRover(Pose{}, DiffDrive{})
	r.SendDriveCommand(DriveCommand{Linear: 1})
	r.Step(0.5)
	assert.InDelta(t, 0.5, r.Pose().Position.X, 1e-12)

	// no new command: the rover stays put
	r.Step(0.5)
	assert.InDelta(t, 0.5, r.Pose().Position.X, 1e-12)
	assert.Equal(t, 1, r.Commands())

	r.SendDriveCommand(DriveCommand{Angular: math.Pi / 2})
	r.Step(1)
	assert.InDelta(t, math.Pi/2, r.Pose().Yaw, 1e-12)
}

func TestSimEnvironment_RangeAndFieldOfView(t *testing.T) {
	rover := NewSimRover(Pose{}, DiffDrive{})
	course := &fakeCourse{wp: Waypoint{MarkerID: 3}}
	env := NewSimEnvironment(rover, course, []SimMarker{{ID: 3, X: 3, Y: 0}, {ID: 4, X: 1, Y: 0}}, 4, 45)

	pos, ok := env.CurrentMarkerPosition()
	assert.True(t, ok)
	assert.Equal(t, Point3D{X: 3}, pos)

	rover.pose.Yaw = math.Pi / 2
	_, ok = env.CurrentMarkerPosition()
	assert.False(t, ok, "behind the camera cone")

	rover.pose = Pose{Position: Point3D{X: -2}}
	_, ok = env.CurrentMarkerPosition()
	assert.False(t, ok, "out of range")

	course.wp.MarkerID = NoMarker
	rover.pose = Pose{}
	_, ok = env.CurrentMarkerPosition()
	assert.False(t, ok, "waypoint has no marker")

	course.wp.MarkerID = 9
	_, ok = env.CurrentMarkerPosition()
	assert.False(t, ok, "marker not in the world")
}

func TestRunSimulation_FindsVisibleMarker(t *testing.T) {
	cfg := simConfig(t,
		[]WaypointConfig{{X: 5, Y: 0, MarkerID: markerRef(7)}},
		[]SimMarker{{ID: 7, X: 7, Y: 0}},
	)
	var events eventLog

	res, err := RunSimulation(context.Background(), cfg, Hooks{Search: []SearchObserver{events.observer()}}, nil)
	require.NoError(t, err)

	assert.True(t, res.Done)
	require.Len(t, res.Results, 1)
	assert.Equal(t, WaypointMarkerFound, res.Results[0].Status)
	dist := res.FinalPose.Position.XY().DistanceTo(Point2D{X: 7})
	assert.Less(t, dist, cfg.Approach.StopThreshold)
	assert.Equal(t, []SearchEventKind{
		EventTrajectoryStarted,
		EventPointReached,
		EventMarkerSighted,
	}, events.kinds())
}

func TestRunSimulation_ExhaustsSpiralForAbsentMarker(t *testing.T) {
	cfg := simConfig(t,
		[]WaypointConfig{{X: 3, Y: 0, MarkerID: markerRef(9)}, {X: 0, Y: 3}},
		nil,
	)
	cfg.Search.Turns = 1
	cfg.Search.Step = 1
	var events eventLog

	res, err := RunSimulation(context.Background(), cfg, Hooks{Search: []SearchObserver{events.observer()}}, nil)
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, WaypointMissed, res.Results[0].Status)
	assert.Equal(t, WaypointReached, res.Results[1].Status)
	assert.Equal(t, map[WaypointStatus]int{WaypointMissed: 1, WaypointReached: 1}, res.Counts())
	assert.Equal(t, []SearchEventKind{
		EventTrajectoryStarted,
		EventPointReached,
		EventPointReached,
		EventPointReached,
		EventPointReached,
		EventPointReached,
		EventExhausted,
	}, events.kinds())
}

func TestRunSimulation_CycleBudget(t *testing.T) {
	cfg := simConfig(t, []WaypointConfig{{X: 50, Y: 0}}, nil)
	cfg.Sim.MaxCycles = 3

	res, err := RunSimulation(context.Background(), cfg, Hooks{}, nil)
	assert.ErrorIs(t, err, ErrCycleBudget)
	assert.Equal(t, 3, res.Cycles)
	assert.False(t, res.Done)
	assert.InDelta(t, 0.3, res.Elapsed.Seconds(), 1e-9)
}

func TestRunSimulation_Cancelled(t *testing.T) {
	cfg := simConfig(t, []WaypointConfig{{X: 50, Y: 0}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunSimulation(ctx, cfg, Hooks{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSimulation_RejectsBadSetup(t *testing.T) {
	cfg := simConfig(t, nil, nil)
	_, err := RunSimulation(context.Background(), cfg, Hooks{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = simConfig(t, []WaypointConfig{{X: 1}}, nil)
	cfg.Sim.Dt = 0
	_, err = RunSimulation(context.Background(), cfg, Hooks{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
