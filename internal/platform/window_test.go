package platform

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/fhengine/firehead/internal/input"
)

func TestKeyAction(t *testing.T) {
	tests := []struct {
		state, repeat uint8
		want          input.Action
	}{
		{uint8(sdl.PRESSED), 0, input.ActionPress},
		{uint8(sdl.RELEASED), 0, input.ActionRelease},
		{uint8(sdl.PRESSED), 1, input.ActionRepeat},
	}

	for _, tt := range tests {
		if got := keyAction(tt.state, tt.repeat); got != tt.want {
			t.Errorf("keyAction(%d, %d) = %v, want %v", tt.state, tt.repeat, got, tt.want)
		}
	}
}

func TestHandleDispatches(t *testing.T) {
	w := &Window{}

	var keys []input.Code
	var buttons []input.Code
	w.OnKey(func(code input.Code, action input.Action) { keys = append(keys, code) })
	w.OnMouseButton(func(code input.Code, action input.Action) { buttons = append(buttons, code) })

	w.handle(&sdl.KeyboardEvent{State: uint8(sdl.PRESSED), Keysym: sdl.Keysym{Sym: sdl.Keycode(sdl.K_w)}})
	w.handle(&sdl.MouseButtonEvent{State: uint8(sdl.PRESSED), Button: uint8(sdl.BUTTON_RIGHT)})
	w.handle(&sdl.QuitEvent{})

	if len(keys) != 1 || keys[0] != input.Key(int32(sdl.K_w)) {
		t.Errorf("key codes = %v, want [%v]", keys, input.Key(int32(sdl.K_w)))
	}
	if len(buttons) != 1 || buttons[0] != input.MouseButton(uint8(sdl.BUTTON_RIGHT)) {
		t.Errorf("button codes = %v, want [%v]", buttons, input.MouseButton(uint8(sdl.BUTTON_RIGHT)))
	}
	if !w.ShouldClose() {
		t.Error("ShouldClose() = false after quit event, want true")
	}
}

func TestFocusLostReleasesHeldInput(t *testing.T) {
	w := &Window{}
	m := input.NewManager()
	w.OnKey(func(code input.Code, action input.Action) { m.HandleEvent(code, action) })
	w.OnFocusLost(m.ReleaseAll)

	moved := 0
	token := m.Register(input.Key(int32(sdl.K_w)), input.Held, func(float64) { moved++ })

	w.handle(&sdl.KeyboardEvent{State: uint8(sdl.PRESSED), Keysym: sdl.Keysym{Sym: sdl.Keycode(sdl.K_w)}})
	if !m.IsHeld(token) {
		t.Fatal("IsHeld() = false after key press")
	}

	w.handle(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_FOCUS_LOST})
	if m.IsHeld(token) {
		t.Error("IsHeld() = true after focus loss")
	}
	m.DispatchHeld(0.016)
	if moved != 0 {
		t.Errorf("held listener ran %d times after focus loss, want 0", moved)
	}
}
