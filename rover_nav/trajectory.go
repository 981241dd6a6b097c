package rover_nav

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSpiral is returned when spiral parameters cannot produce an
// outward search pattern.
var ErrInvalidSpiral = errors.New("invalid spiral parameters")

// spiralDirs is the unit direction cycle: up, left, down, right.
var spiralDirs = [4]Point2D{{X: 0, Y: -1}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}}

// SearchTrajectory is an ordered list of search points plus a cursor marking
// the point currently being driven to. Only the cursor mutates.
type SearchTrajectory struct {
	coordinates []Point3D
	targetID    MarkerID
	cursor      int
}

// GenerateSpiral builds a square spiral of 4*turns+1 points centred on center.
// Leg lengths grow as step, step, 2*step, 2*step, ... so every half turn the
// spiral widens by one step.
func GenerateSpiral(center Point2D, turns int, step float64, target MarkerID) (*SearchTrajectory, error) {
	if turns < 1 {
		return nil, fmt.Errorf("%w: turns must be >= 1, got %d", ErrInvalidSpiral, turns)
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step must be a positive finite distance, got %v", ErrInvalidSpiral, step)
	}

	legs := 4 * turns
	coords := make([]Point3D, 0, legs+1)
	cur := center
	coords = append(coords, cur.Lift())
	for i := 0; i < legs; i++ {
		dir := spiralDirs[i%len(spiralDirs)]
		mag := step * float64(i/2+1)
		cur = Point2D{X: cur.X + dir.X*mag, Y: cur.Y + dir.Y*mag}
		coords = append(coords, cur.Lift())
	}

	return &SearchTrajectory{coordinates: coords, targetID: target}, nil
}

// CurrentPoint returns the point being driven to. Calling it on an exhausted
// trajectory is a programming error and panics.
func (t *SearchTrajectory) CurrentPoint() Point3D {
	if t.Exhausted() {
		panic(fmt.Sprintf("rover_nav: CurrentPoint on exhausted trajectory (marker %d, %d points)", t.targetID, len(t.coordinates)))
	}
	return t.coordinates[t.cursor]
}

// Advance moves to the next point and reports whether the trajectory is now
// exhausted. Call it once per arrival; advancing past the end panics.
func (t *SearchTrajectory) Advance() bool {
	if t.Exhausted() {
		panic(fmt.Sprintf("rover_nav: Advance on exhausted trajectory (marker %d, %d points)", t.targetID, len(t.coordinates)))
	}
	t.cursor++
	return t.cursor >= len(t.coordinates)
}

// Exhausted reports whether every point has been visited.
func (t *SearchTrajectory) Exhausted() bool { return t.cursor >= len(t.coordinates) }

// TargetID is the marker this trajectory searches for.
func (t *SearchTrajectory) TargetID() MarkerID { return t.targetID }

// Cursor is the index of the current point.
func (t *SearchTrajectory) Cursor() int { return t.cursor }

// Len is the total number of points.
func (t *SearchTrajectory) Len() int { return len(t.coordinates) }

// Center is the first point of the trajectory.
func (t *SearchTrajectory) Center() Point3D { return t.coordinates[0] }

// Points returns a copy of the coordinates.
func (t *SearchTrajectory) Points() []Point3D {
	out := make([]Point3D, len(t.coordinates))
	copy(out, t.coordinates)
	return out
}
