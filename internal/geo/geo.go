// Package geo renders search paths as simple-features geometry.
package geo

import (
	"errors"

	geom "github.com/peterstace/simplefeatures/geom"

	nav "rover-search/rover_nav"
)

// ErrTooFewPoints is returned when a path cannot form a line string.
var ErrTooFewPoints = errors.New("a path needs at least two points")

// LineString builds an XY line string through pts in order.
func LineString(pts []nav.Point3D) (geom.LineString, error) {
	if len(pts) < 2 {
		return geom.LineString{}, ErrTooFewPoints
	}
	coords := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		coords = append(coords, p.X, p.Y)
	}
	seq := geom.NewSequence(coords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// TrajectoryLineString converts a search trajectory to a line string.
func TrajectoryLineString(t *nav.SearchTrajectory) (geom.LineString, error) {
	if t == nil {
		return geom.LineString{}, ErrTooFewPoints
	}
	return LineString(t.Points())
}

// Summary describes a search path.
type Summary struct {
	WKT    string
	Length float64
	Simple bool // true when the path never crosses itself
}

// Summarize returns the WKT, length and simplicity of a trajectory.
func Summarize(t *nav.SearchTrajectory) (Summary, error) {
	ls, err := TrajectoryLineString(t)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		WKT:    ls.AsText(),
		Length: ls.Length(),
		Simple: ls.IsSimple(),
	}, nil
}

// Point converts a rover point to a geometry point, keeping Z.
func Point(p nav.Point3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}
