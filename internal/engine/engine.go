// Package engine wires the window, the input bindings, the GPU context and the
// frame scheduler together and owns the main loop.
package engine

import (
	"context"
	"io/fs"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/fhengine/firehead/internal/assets"
	"github.com/fhengine/firehead/internal/config"
	"github.com/fhengine/firehead/internal/gpu"
	"github.com/fhengine/firehead/internal/input"
	"github.com/fhengine/firehead/internal/platform"
	"github.com/fhengine/firehead/internal/render"
	"github.com/fhengine/firehead/internal/scene"
)

type App struct {
	cfg    config.Config
	assets fs.FS

	window    *platform.Window
	inputs    *input.Manager
	camera    *scene.Camera
	device    *gpu.Context
	renderer  *render.Renderer
	scheduler *render.Scheduler
}

// Run starts the application and blocks until the window is closed. It must be
// called from the thread locked in main. Asset paths in cfg are resolved in
// fsys.
func Run(cfg config.Config, fsys fs.FS) error {
	app := &App{cfg: cfg, assets: fsys}
	defer app.cleanup()

	if err := app.init(); err != nil {
		return err
	}
	return app.mainLoop()
}

func (app *App) init() error {
	// Decoding needs no GPU, so it runs before the window and device exist.
	bundle, err := assets.Load(context.Background(), app.assets, app.cfg)
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	app.window, err = platform.Open(app.cfg.Width, app.cfg.Height, app.cfg.WindowTitle)
	if err != nil {
		return err
	}

	grid := scene.NewGrid(bundle.Mesh, app.cfg.GridWidth, app.cfg.GridDepth, app.cfg.GridSpacing)
	app.camera = scene.NewCamera(app.cfg.CameraSpeed)

	app.device, err = gpu.NewContext(app.window, app.cfg)
	if err != nil {
		return errors.Wrap(err, "create gpu context")
	}

	app.renderer, err = render.NewRenderer(app.device, app.window, app.cfg, bundle, grid, app.camera)
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}
	app.scheduler = render.NewScheduler(app.renderer, app.cfg.FramesInFlight)

	app.inputs = input.NewManager()
	Bind(app.inputs, app.camera, app)
	app.window.OnKey(func(code input.Code, action input.Action) {
		app.inputs.HandleEvent(code, action)
	})
	app.window.OnMouseButton(func(code input.Code, action input.Action) {
		app.inputs.HandleEvent(code, action)
	})
	app.window.OnResize(func(width, height int) {
		app.scheduler.RequestResize()
	})
	app.window.OnFocusLost(app.inputs.ReleaseAll)

	log.Printf("rendering %d instances, %d frames in flight", grid.InstanceCount(), app.cfg.FramesInFlight)
	return nil
}

func (app *App) RequestClose() {
	app.window.RequestClose()
}

func (app *App) ToggleFirstInstanceOnly() {
	app.renderer.FirstInstanceOnly = !app.renderer.FirstInstanceOnly
	log.Printf("first instance only: %t", app.renderer.FirstInstanceOnly)
}

func (app *App) mainLoop() error {
	last := hrtime.Now()
	for {
		app.window.PollEvents()
		if app.window.ShouldClose() {
			break
		}

		if width, height := app.window.FramebufferSize(); width == 0 || height == 0 {
			app.window.WaitEvents()
			last = hrtime.Now()
			continue
		}

		now := hrtime.Now()
		dt := (now - last).Seconds()
		last = now

		app.inputs.DispatchHeld(dt)
		if err := app.scheduler.Frame(dt); err != nil {
			return err
		}
	}

	return app.device.WaitIdle()
}

func (app *App) cleanup() {
	if app.renderer != nil {
		app.renderer.Close()
	}
	if app.device != nil {
		app.device.Close()
	}
	if app.window != nil {
		app.window.Close()
	}
}
