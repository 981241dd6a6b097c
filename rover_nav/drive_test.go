package rover_nav

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDrive() DriveFunc {
	return NewDriveFunc(DriveConfig{MaxLinear: 1, MaxAngular: 1, TurnGain: 1.5})
}

func TestDrive_ArrivesInsideStopRadius(t *testing.T) {
	cmd, arrived, err := testDrive()(Point3D{X: 0.1}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.True(t, arrived)
	assert.Equal(t, DriveCommand{}, cmd)
}

func TestDrive_IgnoresZ(t *testing.T) {
	_, arrived, err := testDrive()(Point3D{X: 0.1, Z: 50}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.True(t, arrived)
}

func TestDrive_AlignedDrivesForward(t *testing.T) {
	cmd, arrived, err := testDrive()(Point3D{X: 5}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.False(t, arrived)
	assert.Equal(t, 1.0, cmd.Linear)
	assert.InDelta(t, 0, cmd.Angular, 1e-12)
}

func TestDrive_SlowsNearTarget(t *testing.T) {
	cmd, _, err := testDrive()(Point3D{X: 0.5}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cmd.Linear, 1e-12)
}

func TestDrive_MisalignedTurnsInPlace(t *testing.T) {
	cmd, arrived, err := testDrive()(Point3D{Y: 5}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.False(t, arrived)
	assert.Zero(t, cmd.Linear)
	assert.Equal(t, 1.0, cmd.Angular, "clamped to MaxAngular")

	cmd, _, err = testDrive()(Point3D{Y: -5}, Pose{}, 0.2, 0.95)
	require.NoError(t, err)
	assert.Equal(t, -1.0, cmd.Angular)
}

func TestDrive_HeadingWrapsAcrossPi(t *testing.T) {
	// facing just under +pi, target just past -pi: a small left turn
	pose := Pose{Yaw: math.Pi - 0.05}
	target := Point3D{X: -10, Y: -10 * math.Tan(0.05)}
	cmd, _, err := testDrive()(target, pose, 0.2, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 1.5*0.1, cmd.Angular, 1e-9)
	assert.Greater(t, cmd.Linear, 0.0)
}

func TestDrive_RejectsNonFiniteInput(t *testing.T) {
	_, _, err := testDrive()(Point3D{X: math.NaN()}, Pose{}, 0.2, 0.95)
	assert.ErrorIs(t, err, ErrInvalidDriveInput)

	_, _, err = testDrive()(Point3D{}, Pose{Yaw: math.Inf(1)}, 0.2, 0.95)
	assert.ErrorIs(t, err, ErrInvalidDriveInput)
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0, wrapAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, wrapAngle(3*math.Pi/2), 1e-12)
	assert.InDelta(t, math.Pi/2, wrapAngle(-3*math.Pi/2), 1e-12)
}
