package rover_nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffDrive_WheelSpeedsRoundTrip(t *testing.T) {
	d := DiffDrive{TrackWidth: 0.8, WheelRadius: 0.1}

	l, r := d.WheelSpeeds(DriveCommand{Linear: 1, Angular: 0.5})
	assert.InDelta(t, 8, l, 1e-9)
	assert.InDelta(t, 12, r, 1e-9)

	back := d.Twist(l, r)
	assert.InDelta(t, 1, back.Linear, 1e-9)
	assert.InDelta(t, 0.5, back.Angular, 1e-9)
}

func TestDiffDrive_RealizeClampsWheels(t *testing.T) {
	d := DiffDrive{TrackWidth: 0.8, WheelRadius: 0.1, MaxWheelSpeed: 12}

	got := d.Realize(DriveCommand{Linear: 10})
	assert.InDelta(t, 1.2, got.Linear, 1e-9)
	assert.InDelta(t, 0, got.Angular, 1e-9)

	// within limits passes through
	got = d.Realize(DriveCommand{Linear: 0.5, Angular: 0.2})
	assert.InDelta(t, 0.5, got.Linear, 1e-9)
	assert.InDelta(t, 0.2, got.Angular, 1e-9)
}

func TestDiffDrive_RealizeDeadbandStallsSlowWheels(t *testing.T) {
	d := DiffDrive{TrackWidth: 0.8, WheelRadius: 0.1, MaxWheelSpeed: 10, Deadband: 0.2}

	got := d.Realize(DriveCommand{Linear: 0.1})
	assert.Equal(t, DriveCommand{}, got)
}

func TestDeadzone(t *testing.T) {
	assert.Equal(t, 0.3, Deadzone(0.3, 0))
	assert.Equal(t, 0.0, Deadzone(0.05, 0.1))
	assert.Equal(t, 0.0, Deadzone(-0.1, 0.1))
	assert.InDelta(t, 0.5, Deadzone(0.55, 0.1), 1e-9)
	assert.InDelta(t, -1, Deadzone(-1, 0.1), 1e-9)
}
