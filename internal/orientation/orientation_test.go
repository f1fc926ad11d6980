package orientation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePoseFromAccel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 9.8)
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)

	p = ComputePoseFromAccel(-9.8, 0, 0)
	assert.InDelta(t, 90, p.Pitch, 1e-9)

	p = ComputePoseFromAccel(0, 9.8, 0)
	assert.InDelta(t, 90, p.Roll, 1e-9)
}

func TestTiltFromGravity(t *testing.T) {
	flat := TiltFromGravity(0, 0, 1)
	assert.InDelta(t, 0, flat.ScreenTilt, 1e-9)

	portrait := TiltFromGravity(0, 1, 0)
	assert.InDelta(t, 90, portrait.ScreenTilt, 1e-9)
	assert.InDelta(t, 0, portrait.SideRoll, 1e-9)

	side := TiltFromGravity(9.8, 0, 0)
	assert.InDelta(t, 90, side.ScreenTilt, 1e-9)
	assert.InDelta(t, 90, side.SideRoll, 1e-9)

	assert.Equal(t, Tilt{}, TiltFromGravity(0, 0, 0))
}
