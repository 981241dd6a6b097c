package rover_nav

import (
	"errors"
	"math"
)

// ErrInvalidDriveInput is returned when the target or pose is not finite.
var ErrInvalidDriveInput = errors.New("drive: non-finite target or pose")

// DriveConfig bounds the twist produced by the drive function.
type DriveConfig struct {
	MaxLinear  float64 `mapstructure:"max_linear" json:"max_linear"`
	MaxAngular float64 `mapstructure:"max_angular" json:"max_angular"`
	TurnGain   float64 `mapstructure:"turn_gain" json:"turn_gain"`
}

// ThresholdConfig is the stop distance and forward-alignment pair passed to a
// DriveFunc by a behaviour.
type ThresholdConfig struct {
	StopThreshold    float64 `mapstructure:"stop_threshold" json:"stop_threshold"`
	ForwardThreshold float64 `mapstructure:"forward_threshold" json:"forward_threshold"`
}

// NewDriveFunc returns a stateless point-turn-then-drive controller.
//
// The rover drives forward only while cos(heading error) >= forwardAlign;
// otherwise it turns in place toward the target. Linear speed tapers with
// distance so it never overshoots within one cycle.
func NewDriveFunc(cfg DriveConfig) DriveFunc {
	return func(target Point3D, pose Pose, stop, forwardAlign float64) (DriveCommand, bool, error) {
		if !finite(target.X, target.Y, pose.Position.X, pose.Position.Y, pose.Yaw) {
			return DriveCommand{}, false, ErrInvalidDriveInput
		}

		dx := target.X - pose.Position.X
		dy := target.Y - pose.Position.Y
		dist := math.Hypot(dx, dy)
		if dist < stop {
			return DriveCommand{}, true, nil
		}

		headingErr := wrapAngle(math.Atan2(dy, dx) - pose.Yaw)
		angular := clamp(cfg.TurnGain*headingErr, -cfg.MaxAngular, cfg.MaxAngular)

		if math.Cos(headingErr) < forwardAlign {
			return DriveCommand{Angular: angular}, false, nil
		}
		return DriveCommand{Linear: clamp(dist, 0, cfg.MaxLinear), Angular: angular}, false, nil
	}
}

// wrapAngle maps an angle into (-pi, pi].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
