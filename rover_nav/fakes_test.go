package rover_nav

import (
	"context"
	"errors"
)

type fakeRover struct {
	pose Pose
	sent []DriveCommand
}

func (r *fakeRover) Pose() Pose                        { return r.pose }
func (r *fakeRover) SendDriveCommand(cmd DriveCommand) { r.sent = append(r.sent, cmd) }

type fakeEnv struct {
	pos     Point3D
	visible bool
}

func (e *fakeEnv) CurrentMarkerPosition() (Point3D, bool) { return e.pos, e.visible }

type fakeCourse struct {
	wp  Waypoint
	err error
}

func (c *fakeCourse) CurrentWaypoint() (Waypoint, error) { return c.wp, c.err }

// scriptedDrive records every target and threshold pair and reports arrival
// according to arrive.
type scriptedDrive struct {
	targets    []Point3D
	thresholds [][2]float64
	arrive     func(call int) bool
	err        error
}

func (d *scriptedDrive) fn() DriveFunc {
	return func(target Point3D, pose Pose, stop, fwd float64) (DriveCommand, bool, error) {
		if d.err != nil {
			return DriveCommand{}, false, d.err
		}
		call := len(d.targets)
		d.targets = append(d.targets, target)
		d.thresholds = append(d.thresholds, [2]float64{stop, fwd})
		if d.arrive != nil && d.arrive(call) {
			return DriveCommand{}, true, nil
		}
		return DriveCommand{Linear: 0.5, Angular: 0.1}, false, nil
	}
}

func always(int) bool { return true }
func never(int) bool  { return false }

var errBoom = errors.New("boom")

type eventLog struct {
	events []SearchEvent
}

func (l *eventLog) observer() SearchObserver {
	return SearchObserverFunc(func(_ context.Context, ev SearchEvent) { l.events = append(l.events, ev) })
}

func (l *eventLog) kinds() []SearchEventKind {
	out := make([]SearchEventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}
