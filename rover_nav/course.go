package rover_nav

import "errors"

// ErrCourseComplete is returned once every waypoint has been handled.
var ErrCourseComplete = errors.New("course complete")

// CourseStore is an ordered list of waypoints with a cursor.
type CourseStore struct {
	waypoints []Waypoint
	index     int
}

// NewCourseStore copies waypoints into a new course.
func NewCourseStore(waypoints []Waypoint) *CourseStore {
	wps := make([]Waypoint, len(waypoints))
	copy(wps, waypoints)
	return &CourseStore{waypoints: wps}
}

// CurrentWaypoint returns the waypoint being pursued.
func (c *CourseStore) CurrentWaypoint() (Waypoint, error) {
	if c.Done() {
		return Waypoint{}, ErrCourseComplete
	}
	return c.waypoints[c.index], nil
}

// Index is the position of the current waypoint.
func (c *CourseStore) Index() int { return c.index }

// Len is the number of waypoints in the course.
func (c *CourseStore) Len() int { return len(c.waypoints) }

// Advance moves to the next waypoint and reports whether the course is done.
func (c *CourseStore) Advance() bool {
	if !c.Done() {
		c.index++
	}
	return c.Done()
}

// Done reports whether the course has no waypoints left.
func (c *CourseStore) Done() bool { return c.index >= len(c.waypoints) }
