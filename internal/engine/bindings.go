package engine

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/fhengine/firehead/internal/input"
	"github.com/fhengine/firehead/internal/scene"
)

// fastMultiplier scales camera speed while the right mouse button is held.
const fastMultiplier = 4

// Controls are the non-camera actions reachable from the keyboard.
type Controls interface {
	RequestClose()
	ToggleFirstInstanceOnly()
}

func key(sym sdl.Keycode) input.Code {
	return input.Key(int32(sym))
}

// Bind registers the default key and mouse bindings on m.
func Bind(m *input.Manager, camera *scene.Camera, controls Controls) {
	moves := []struct {
		sym  sdl.Keycode
		axis scene.Axis
	}{
		{sdl.K_w, scene.Forward},
		{sdl.K_s, scene.Backward},
		{sdl.K_d, scene.Right},
		{sdl.K_a, scene.Left},
		{sdl.K_SPACE, scene.Up},
		{sdl.K_LSHIFT, scene.Down},
	}
	for _, move := range moves {
		axis := move.axis
		m.Register(key(move.sym), input.Held, func(dt float64) {
			camera.Move(axis, dt)
		})
	}

	turns := []struct {
		sym        sdl.Keycode
		yaw, pitch float32
	}{
		{sdl.K_LEFT, -1, 0},
		{sdl.K_RIGHT, 1, 0},
		{sdl.K_UP, 0, 1},
		{sdl.K_DOWN, 0, -1},
	}
	for _, turn := range turns {
		yaw, pitch := turn.yaw, turn.pitch
		m.Register(key(turn.sym), input.Held, func(dt float64) {
			camera.Turn(yaw, pitch, dt)
		})
	}

	m.Register(key(sdl.K_ESCAPE), input.Pressed, func(float64) {
		controls.RequestClose()
	})
	m.Register(key(sdl.K_F1), input.Pressed, func(float64) {
		controls.ToggleFirstInstanceOnly()
	})

	fast := input.MouseButton(uint8(sdl.BUTTON_RIGHT))
	m.Register(fast, input.Pressed, func(float64) {
		camera.Multiplier = fastMultiplier
	})
	m.Register(fast, input.Released, func(float64) {
		camera.Multiplier = 1
	})
}
