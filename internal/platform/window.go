// Package platform is the SDL2 window and event source.
//
// All calls must come from the thread that opened the window.
package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/fhengine/firehead/internal/input"
)

type Window struct {
	window      *sdl.Window
	shouldClose bool

	onResize      func(width, height int)
	onFocusLost   func()
	onKey         func(code input.Code, action input.Action)
	onMouseButton func(code input.Code, action input.Action)
}

// Open initializes SDL video and creates a resizable Vulkan window.
func Open(width, height int, title string) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{window: window}, nil
}

func (w *Window) OnResize(fn func(width, height int)) { w.onResize = fn }

// OnFocusLost fires when keyboard focus leaves the window.
func (w *Window) OnFocusLost(fn func()) { w.onFocusLost = fn }

func (w *Window) OnKey(fn func(code input.Code, action input.Action)) { w.onKey = fn }

func (w *Window) OnMouseButton(fn func(code input.Code, action input.Action)) { w.onMouseButton = fn }

// PollEvents drains the event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the queue.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.shouldClose = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
			if w.onResize != nil {
				width, height := w.FramebufferSize()
				w.onResize(width, height)
			}
		case sdl.WINDOWEVENT_FOCUS_LOST:
			if w.onFocusLost != nil {
				w.onFocusLost()
			}
		}
	case *sdl.KeyboardEvent:
		if w.onKey != nil {
			w.onKey(input.Key(int32(e.Keysym.Sym)), keyAction(e.State, e.Repeat))
		}
	case *sdl.MouseButtonEvent:
		if w.onMouseButton != nil {
			w.onMouseButton(input.MouseButton(e.Button), keyAction(e.State, 0))
		}
	}
}

func keyAction(state, repeat uint8) input.Action {
	switch {
	case repeat != 0:
		return input.ActionRepeat
	case state == uint8(sdl.PRESSED):
		return input.ActionPress
	default:
		return input.ActionRelease
	}
}

// FramebufferSize is the drawable size in pixels. It is 0x0 while minimized.
func (w *Window) FramebufferSize() (int, int) {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *Window) ShouldClose() bool { return w.shouldClose }

func (w *Window) RequestClose() { w.shouldClose = true }

func (w *Window) VulkanProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

func (w *Window) VulkanInstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance, surfaceDriver khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, surfaceDriver, w.window)
}

func (w *Window) Close() {
	if w.window != nil {
		_ = w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
