package rover_nav

import "math"

// DiffDrive describes a skid/differential drive base.
type DiffDrive struct {
	TrackWidth    float64 // metres between left and right wheels
	WheelRadius   float64 // metres
	MaxWheelSpeed float64 // rad/s, 0 disables clamping
	Deadband      float64 // fraction of MaxWheelSpeed below which wheels stall
}

// WheelSpeeds converts a body twist into left/right wheel angular velocities.
func (d DiffDrive) WheelSpeeds(cmd DriveCommand) (omegaL, omegaR float64) {
	omegaL = (cmd.Linear - cmd.Angular*d.TrackWidth/2) / d.WheelRadius
	omegaR = (cmd.Linear + cmd.Angular*d.TrackWidth/2) / d.WheelRadius
	return omegaL, omegaR
}

// Twist converts wheel angular velocities back into a body twist.
func (d DiffDrive) Twist(omegaL, omegaR float64) DriveCommand {
	return DriveCommand{
		Linear:  d.WheelRadius * (omegaL + omegaR) / 2,
		Angular: d.WheelRadius * (omegaR - omegaL) / d.TrackWidth,
	}
}

// Realize returns the twist the base actually produces for cmd once wheel
// limits and the motor deadband are applied.
func (d DiffDrive) Realize(cmd DriveCommand) DriveCommand {
	l, r := d.WheelSpeeds(cmd)
	if d.MaxWheelSpeed > 0 {
		l = d.MaxWheelSpeed * Deadzone(clamp(l/d.MaxWheelSpeed, -1, 1), d.Deadband)
		r = d.MaxWheelSpeed * Deadzone(clamp(r/d.MaxWheelSpeed, -1, 1), d.Deadband)
	}
	return d.Twist(l, r)
}

// Deadzone zeroes magnitudes at or below threshold and rescales the rest so
// the output still spans [-1, 1].
func Deadzone(magnitude, threshold float64) float64 {
	if threshold <= 0 {
		return magnitude
	}
	m := math.Abs(magnitude)
	if m <= threshold {
		return 0
	}
	return math.Copysign((m-threshold)/(1-threshold), magnitude)
}
