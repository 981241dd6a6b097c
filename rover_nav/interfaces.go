package rover_nav

import (
	"fmt"
	"math"
)

// Point2D is a planar position in the rover's odometry frame (metres).
type Point2D struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
}

// Point3D is a position in the rover's odometry frame. Search paths keep Z at 0.
type Point3D struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
	Z float64 `mapstructure:"z" json:"z"`
}

// XY drops the Z component.
func (p Point3D) XY() Point2D { return Point2D{X: p.X, Y: p.Y} }

// Lift returns the point at Z = 0.
func (p Point2D) Lift() Point3D { return Point3D{X: p.X, Y: p.Y} }

// DistanceTo returns the planar distance between two points.
func (p Point2D) DistanceTo(o Point2D) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Pose is the rover position plus heading.
//
// Conventions:
//   - Yaw in radians, counter-clockwise from +X.
type Pose struct {
	Position Point3D
	Yaw      float64
}

// MarkerID identifies a fiducial marker attached to a waypoint.
type MarkerID int

// NoMarker marks a waypoint that has no fiducial to search for.
const NoMarker MarkerID = -1

// Waypoint is a course target, optionally tagged with a fiducial.
type Waypoint struct {
	Position Point2D  `mapstructure:"position" json:"position"`
	MarkerID MarkerID `mapstructure:"marker_id" json:"marker_id"`
}

// HasMarker reports whether the waypoint carries a real marker id.
func (w Waypoint) HasMarker() bool { return w.MarkerID != NoMarker }

// DriveCommand is a body twist sent to the drive base.
type DriveCommand struct {
	Linear  float64 // m/s, forward positive
	Angular float64 // rad/s, counter-clockwise positive
}

// DriveFunc turns a target point and the current pose into a drive command and
// an arrival flag. Arrival means the rover is within stop of the target.
type DriveFunc func(target Point3D, pose Pose, stop, forwardAlign float64) (DriveCommand, bool, error)

// Course exposes the waypoint currently being pursued.
type Course interface {
	CurrentWaypoint() (Waypoint, error)
}

// Environment reports what perception currently sees.
type Environment interface {
	// CurrentMarkerPosition returns the position of the tracked marker, or
	// false when none is visible.
	CurrentMarkerPosition() (Point3D, bool)
}

// Rover is the vehicle interface: pose in, drive commands out.
type Rover interface {
	Pose() Pose
	SendDriveCommand(cmd DriveCommand)
}

// Outcome is the transition label the search state hands back to its host.
type Outcome int

const (
	OutcomeContinueSearch Outcome = iota + 1
	OutcomeHandoffToFiducial
	OutcomeResumeCourse
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinueSearch:
		return "CONTINUE_SEARCH"
	case OutcomeHandoffToFiducial:
		return "HANDOFF_TO_FIDUCIAL_APPROACH"
	case OutcomeResumeCourse:
		return "RESUME_COURSE"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// State names the navigator behaviour that is active for a cycle.
type State int

const (
	StateTraverse State = iota + 1
	StateSearch
	StateApproach
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTraverse:
		return "TRAVERSE"
	case StateSearch:
		return "SEARCH"
	case StateApproach:
		return "APPROACH"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
