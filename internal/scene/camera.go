package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Axis int

const (
	Forward Axis = iota
	Backward
	Right
	Left
	Up
	Down
)

const maxPitch = 89 * math.Pi / 180

// clip maps OpenGL clip space to Vulkan's: Y points down and depth is [0,1].
var clip = mgl32.Mat4{1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 0.5, 0, 0, 0, 0.5, 1}

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a free-fly camera. Yaw 0 and pitch 0 look down -Z.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	// Speed is in world units per second.
	Speed      float32
	Multiplier float32
	TurnSpeed  float32

	FovY      float32
	Near, Far float32
}

func NewCamera(speed float32) *Camera {
	return &Camera{
		Position:   mgl32.Vec3{0, 4, 12},
		Pitch:      -0.3,
		Speed:      speed,
		Multiplier: 1,
		TurnSpeed:  1.5,
		FovY:       mgl32.DegToRad(45),
		Near:       0.1,
		Far:        500,
	}
}

func (c *Camera) Front() mgl32.Vec3 {
	yaw, pitch := float64(c.Yaw), float64(c.Pitch)
	return mgl32.Vec3{
		float32(math.Sin(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(-math.Cos(yaw) * math.Cos(pitch)),
	}.Normalize()
}

func (c *Camera) RightVec() mgl32.Vec3 {
	return c.Front().Cross(worldUp).Normalize()
}

func (c *Camera) direction(axis Axis) mgl32.Vec3 {
	switch axis {
	case Forward:
		return c.Front()
	case Backward:
		return c.Front().Mul(-1)
	case Right:
		return c.RightVec()
	case Left:
		return c.RightVec().Mul(-1)
	case Up:
		return worldUp
	case Down:
		return worldUp.Mul(-1)
	}
	return mgl32.Vec3{}
}

// Move translates the camera by Speed*dt along axis.
func (c *Camera) Move(axis Axis, dt float64) {
	distance := c.Speed * c.Multiplier * float32(dt)
	c.Position = c.Position.Add(c.direction(axis).Mul(distance))
}

// Turn rotates by TurnSpeed*dt radians scaled by the given yaw/pitch signs.
func (c *Camera) Turn(yaw, pitch float32, dt float64) {
	step := c.TurnSpeed * float32(dt)
	c.Yaw += yaw * step
	c.Pitch = mgl32.Clamp(c.Pitch+pitch*step, -maxPitch, maxPitch)
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front()), worldUp)
}

func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return clip.Mul4(mgl32.Perspective(c.FovY, aspect, c.Near, c.Far))
}

// Uniform samples the camera for one frame.
func (c *Camera) Uniform(width, height int) CameraUniform {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return CameraUniform{View: c.View(), Proj: c.Projection(aspect)}
}
