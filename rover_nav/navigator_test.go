package rover_nav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleLog struct{ samples []CycleSample }

func (l *sampleLog) WriteCycle(_ context.Context, s CycleSample) { l.samples = append(l.samples, s) }

type resultLog struct{ results []WaypointResult }

func (l *resultLog) ObserveWaypoint(_ context.Context, r WaypointResult) {
	l.results = append(l.results, r)
}

type navFixture struct {
	rover   *fakeRover
	env     *fakeEnv
	course  *CourseStore
	drive   *scriptedDrive
	samples *sampleLog
	results *resultLog
	events  *eventLog
	nav     *Navigator
}

func newNavFixture(cfg NavigatorConfig, wps []Waypoint, arrive func(int) bool) *navFixture {
	f := &navFixture{
		rover:   &fakeRover{},
		env:     &fakeEnv{pos: Point3D{X: 3, Y: 3}},
		course:  NewCourseStore(wps),
		drive:   &scriptedDrive{arrive: arrive},
		samples: &sampleLog{},
		results: &resultLog{},
		events:  &eventLog{},
	}
	f.nav = NewNavigator(cfg, f.course, f.rover, f.env, f.drive.fn(),
		WithHooks(Hooks{
			Search:    []SearchObserver{f.events.observer()},
			Cycles:    []CycleSink{f.samples},
			Waypoints: []WaypointObserver{f.results},
		}),
	)
	return f
}

func navConfig(turns int) NavigatorConfig {
	search := DefaultSearchConfig()
	search.Turns = turns
	return NavigatorConfig{
		Search:   search,
		Traverse: ThresholdConfig{StopThreshold: 0.5, ForwardThreshold: 0.95},
		Approach: ThresholdConfig{StopThreshold: 1, ForwardThreshold: 0.9},
	}
}

func (f *navFixture) run(t *testing.T, n int) State {
	t.Helper()
	var state State
	for i := 0; i < n; i++ {
		var err error
		state, err = f.nav.Step(context.Background())
		require.NoError(t, err)
	}
	return state
}

func TestNavigator_PlainWaypointIsReached(t *testing.T) {
	f := newNavFixture(navConfig(1), []Waypoint{{Position: Point2D{X: 1}, MarkerID: NoMarker}}, always)

	assert.Equal(t, StateDone, f.run(t, 1))
	require.Len(t, f.results.results, 1)
	assert.Equal(t, WaypointReached, f.results.results[0].Status)
	assert.Nil(t, f.nav.Search().Trajectory(), "no search for unmarked waypoints")
}

func TestNavigator_MarkerFoundFlow(t *testing.T) {
	f := newNavFixture(navConfig(1), []Waypoint{{Position: Point2D{X: 1}, MarkerID: 5}}, always)
	f.env.visible = true

	assert.Equal(t, StateSearch, f.run(t, 1))
	assert.Equal(t, StateApproach, f.run(t, 1))
	assert.Equal(t, StateDone, f.run(t, 1))

	require.Len(t, f.results.results, 1)
	assert.Equal(t, WaypointMarkerFound, f.results.results[0].Status)
	assert.Equal(t, f.results.results, f.nav.Results())

	// approach drives at the marker itself
	assert.Equal(t, f.env.pos, f.drive.targets[len(f.drive.targets)-1])

	require.Len(t, f.samples.samples, 3)
	s := f.samples.samples[1]
	assert.Equal(t, StateSearch, s.State)
	assert.Equal(t, StateApproach, s.Next)
	assert.Equal(t, OutcomeHandoffToFiducial, s.Outcome)
	assert.Equal(t, MarkerID(5), s.MarkerID)
	assert.True(t, s.Commanded)
	assert.Equal(t, 1, s.Cursor)
	assert.Equal(t, 5, s.Points)
	assert.Zero(t, f.samples.samples[0].Outcome)
}

func TestNavigator_ExhaustedSearchMissesWaypoint(t *testing.T) {
	wps := []Waypoint{
		{Position: Point2D{X: 1}, MarkerID: 5},
		{Position: Point2D{X: 2}, MarkerID: NoMarker},
	}
	f := newNavFixture(navConfig(1), wps, always)

	assert.Equal(t, StateSearch, f.run(t, 1))
	assert.Equal(t, StateSearch, f.run(t, 4))
	assert.Equal(t, StateTraverse, f.run(t, 1), "exhaustion resumes the course")

	require.Len(t, f.results.results, 1)
	assert.Equal(t, WaypointMissed, f.results.results[0].Status)
	assert.Nil(t, f.nav.Search().Trajectory(), "spent spiral is dropped")
	assert.Equal(t, OutcomeResumeCourse, f.samples.samples[5].Outcome)
	assert.False(t, f.samples.samples[5].Commanded)

	assert.Equal(t, StateDone, f.run(t, 1))
	assert.Equal(t, WaypointReached, f.results.results[1].Status)
}

func TestNavigator_LostMarkerResumesSameSpiral(t *testing.T) {
	f := newNavFixture(navConfig(2), []Waypoint{{Position: Point2D{X: 1}, MarkerID: 5}}, func(call int) bool { return call == 0 })
	f.env.visible = true

	f.run(t, 1) // traverse arrives
	assert.Equal(t, StateApproach, f.run(t, 1))
	traj := f.nav.Search().Trajectory()

	f.env.visible = false
	assert.Equal(t, StateSearch, f.run(t, 1))
	assert.Equal(t, StateSearch, f.run(t, 1))
	assert.Same(t, traj, f.nav.Search().Trajectory())
	assert.Empty(t, f.results.results)
}

func TestNavigator_StartStateOverride(t *testing.T) {
	cfg := navConfig(1)
	cfg.Start = StateSearch
	f := newNavFixture(cfg, []Waypoint{{MarkerID: 5}}, never)

	assert.Equal(t, StateSearch, f.nav.State())
	f.run(t, 1)
	require.NotNil(t, f.nav.Search().Trajectory())
	assert.Equal(t, 1, f.nav.Cycle())
}

func TestNavigator_EmptyCourseIsDone(t *testing.T) {
	f := newNavFixture(navConfig(1), nil, always)

	assert.Equal(t, StateDone, f.run(t, 1))
	assert.Equal(t, StateDone, f.run(t, 1))
	assert.Empty(t, f.rover.sent)
}

func TestNavigator_DriveErrorSurfaces(t *testing.T) {
	f := newNavFixture(navConfig(1), []Waypoint{{MarkerID: 5}}, always)
	f.drive.err = errBoom

	_, err := f.nav.Step(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.samples.samples)
}

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"traverse":          StateTraverse,
		"WAYPOINT_TRAVERSE": StateTraverse,
		" search ":          StateSearch,
		"single_fiducial":   StateApproach,
		"APPROACH":          StateApproach,
	}
	for in, want := range cases {
		got, err := ParseState(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseState("HOVER")
	assert.Error(t, err)
}

func TestHooksMerge(t *testing.T) {
	a := Hooks{Cycles: []CycleSink{&sampleLog{}}}
	b := Hooks{Cycles: []CycleSink{&sampleLog{}}, Waypoints: []WaypointObserver{&resultLog{}}}

	m := a.Merge(b)
	assert.Len(t, m.Cycles, 2)
	assert.Len(t, m.Waypoints, 1)
	assert.Len(t, a.Cycles, 1)
}
