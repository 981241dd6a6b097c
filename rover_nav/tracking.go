package rover_nav

// TrackerConfig controls smoothing and dropout handling for marker sightings.
type TrackerConfig struct {
	Alpha       float64 `mapstructure:"alpha" json:"alpha"`
	HoldSeconds float64 `mapstructure:"hold_seconds" json:"hold_seconds"`
}

// MarkerObservation is a single perception report.
type MarkerObservation struct {
	T        float64
	Detected bool
	ID       MarkerID
	Position Point3D
}

// MarkerState is the filtered marker estimate used by the navigator.
type MarkerState struct {
	T        float64
	Valid    bool
	ID       MarkerID
	Position Point3D
	Age      float64
}

// MarkerTracker smooths sightings of the target marker and keeps it visible
// for a short hold window after the last detection.
type MarkerTracker struct {
	cfg TrackerConfig

	target     MarkerID
	seeded     bool
	pos        Point3D
	lastValidT *float64
	state      MarkerState
}

// NewMarkerTracker constructs a tracker with the provided configuration.
func NewMarkerTracker(cfg TrackerConfig) *MarkerTracker {
	return &MarkerTracker{cfg: cfg, target: NoMarker}
}

// Update ingests the latest observation for the given target marker and
// returns the filtered state. Switching target discards history.
func (tr *MarkerTracker) Update(obs MarkerObservation, target MarkerID) MarkerState {
	if target != tr.target {
		*tr = MarkerTracker{cfg: tr.cfg, target: target}
	}

	t := obs.T
	good := obs.Detected && target != NoMarker && obs.ID == target

	var valid bool
	var age float64

	if good {
		if !tr.seeded {
			tr.pos = obs.Position
			tr.seeded = true
		} else {
			a := tr.cfg.Alpha
			tr.pos = Point3D{
				X: a*tr.pos.X + (1-a)*obs.Position.X,
				Y: a*tr.pos.Y + (1-a)*obs.Position.Y,
				Z: a*tr.pos.Z + (1-a)*obs.Position.Z,
			}
		}
		tr.lastValidT = &t
		valid = true
	} else {
		if tr.lastValidT != nil {
			age = t - *tr.lastValidT
			valid = age <= tr.cfg.HoldSeconds
		} else {
			age = 999
		}
	}

	tr.state = MarkerState{T: t, Valid: valid, ID: target, Position: tr.pos, Age: age}
	return tr.state
}

// State returns the most recent filtered state.
func (tr *MarkerTracker) State() MarkerState { return tr.state }

// CurrentMarkerPosition implements Environment.
func (tr *MarkerTracker) CurrentMarkerPosition() (Point3D, bool) {
	if !tr.state.Valid {
		return Point3D{}, false
	}
	return tr.state.Position, true
}
