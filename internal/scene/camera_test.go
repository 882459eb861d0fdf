package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-3

func TestHeldForwardMovesSpeedTimesDelta(t *testing.T) {
	for _, dt := range []float64{0.016, 0.5, 2} {
		c := NewCamera(15)
		start := c.Position
		front := c.Front()

		c.Move(Forward, dt)

		moved := c.Position.Sub(start)
		if got, want := moved.Len(), float32(15*dt); math.Abs(float64(got-want)) > epsilon {
			t.Errorf("dt=%v: moved %v, want %v", dt, got, want)
		}
		if dot := moved.Normalize().Dot(front); math.Abs(float64(dot-1)) > epsilon {
			t.Errorf("dt=%v: moved off the forward axis, dot = %v", dt, dot)
		}
	}
}

func TestMovementIndependentOfFrameCount(t *testing.T) {
	small := NewCamera(15)
	for i := 0; i < 100; i++ {
		small.Move(Forward, 0.01)
	}

	big := NewCamera(15)
	big.Move(Forward, 1)

	if !small.Position.ApproxEqualThreshold(big.Position, epsilon) {
		t.Errorf("100 steps of 0.01s = %v, one step of 1s = %v", small.Position, big.Position)
	}
}

func TestMoveAxes(t *testing.T) {
	c := NewCamera(1)
	c.Pitch = 0
	c.Position = mgl32.Vec3{}

	tests := []struct {
		axis Axis
		want mgl32.Vec3
	}{
		{Forward, mgl32.Vec3{0, 0, -1}},
		{Backward, mgl32.Vec3{0, 0, 1}},
		{Right, mgl32.Vec3{1, 0, 0}},
		{Left, mgl32.Vec3{-1, 0, 0}},
		{Up, mgl32.Vec3{0, 1, 0}},
		{Down, mgl32.Vec3{0, -1, 0}},
	}
	for _, tt := range tests {
		c.Position = mgl32.Vec3{}
		c.Move(tt.axis, 1)
		if !c.Position.ApproxEqualThreshold(tt.want, epsilon) {
			t.Errorf("Move(%d) = %v, want %v", tt.axis, c.Position, tt.want)
		}
	}
}

func TestTurnClampsPitch(t *testing.T) {
	c := NewCamera(1)
	c.Turn(0, 1, 100)
	if c.Pitch > maxPitch+epsilon {
		t.Errorf("Pitch = %v, want <= %v", c.Pitch, maxPitch)
	}
}

func TestProjectionFlipsY(t *testing.T) {
	c := NewCamera(1)
	p := c.Projection(1)
	gl := mgl32.Perspective(c.FovY, 1, c.Near, c.Far)
	if p.At(1, 1) != -gl.At(1, 1) {
		t.Errorf("Projection[1][1] = %v, want %v", p.At(1, 1), -gl.At(1, 1))
	}
}

func TestUniformZeroHeight(t *testing.T) {
	c := NewCamera(1)
	u := c.Uniform(800, 0)
	if u.Proj.At(0, 0) == 0 || math.IsNaN(float64(u.Proj.At(0, 0))) {
		t.Errorf("Proj[0][0] = %v for zero height", u.Proj.At(0, 0))
	}
}
