// Package config holds the compile-time settings of the renderer.
//
// There are no runtime arguments. Validation layers and debug readback follow the
// build: default builds enable them and `-tags release` turns them off.
package config

import (
	"os"
	"path/filepath"
)

const (
	WindowTitle = "Hello Instances | FHE"
	AppName     = "Hello Instances"
	EngineName  = "Firehead Engine"
)

type Config struct {
	Width, Height int
	WindowTitle   string
	AppName       string

	// FramesInFlight is the number of frame slots the scheduler cycles through.
	FramesInFlight int

	ValidationLayers []string
	EnableValidation bool
	// DebugReadback marks device-local buffers as transfer sources so their
	// contents can be copied back to the host.
	DebugReadback bool

	EnableMSAA        bool
	EnableDepth       bool
	Instancing        bool
	FirstInstanceOnly bool

	GridWidth, GridDepth int
	GridSpacing          float32
	CameraSpeed          float32

	// Asset paths are slash-separated and resolved in the asset file system.
	// Shaders ending in .wgsl are compiled at load time, anything else must
	// be SPIR-V.
	VertexShaderPath   string
	FragmentShaderPath string
	ModelPath          string
	TexturePath        string

	// PipelineCachePath is empty when no writable cache dir exists.
	PipelineCachePath string
}

func Default() Config {
	return Config{
		Width:       800,
		Height:      600,
		WindowTitle: WindowTitle,
		AppName:     AppName,

		FramesInFlight: 2,

		ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"},
		EnableValidation: debugBuild,
		DebugReadback:    debugBuild,

		EnableMSAA:  true,
		EnableDepth: true,
		Instancing:  true,

		GridWidth:   10,
		GridDepth:   10,
		GridSpacing: 3,
		CameraSpeed: 15,

		VertexShaderPath:   "assets/shaders/shader.vert.wgsl",
		FragmentShaderPath: "assets/shaders/shader.frag.wgsl",
		ModelPath:          "assets/models/crate.obj",
		TexturePath:        "assets/textures/crate.png",

		PipelineCachePath: pipelineCachePath(),
	}
}

func pipelineCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "firehead", "pipeline.cache")
}
