// Package assets loads the files the renderer consumes: shaders, obj meshes
// and textures. Decoding is CPU-only and may run concurrently.
package assets

import (
	"context"
	"io/fs"
	"log"

	"github.com/loov/hrtime"
	"golang.org/x/sync/errgroup"

	"github.com/fhengine/firehead/internal/config"
	"github.com/fhengine/firehead/internal/scene"
)

type Bundle struct {
	VertexShader   []byte
	FragmentShader []byte
	Mesh           scene.Mesh
	Texture        *Texture
}

// Load reads every asset named by cfg from fsys in parallel.
func Load(ctx context.Context, fsys fs.FS, cfg config.Config) (*Bundle, error) {
	start := hrtime.Now()
	bundle := &Bundle{}

	group, ctx := errgroup.WithContext(ctx)
	load := func(fn func() error) {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn()
		})
	}

	load(func() (err error) {
		bundle.VertexShader, err = LoadShader(fsys, cfg.VertexShaderPath)
		return err
	})
	load(func() (err error) {
		bundle.FragmentShader, err = LoadShader(fsys, cfg.FragmentShaderPath)
		return err
	})
	load(func() (err error) {
		bundle.Mesh, err = LoadModel(fsys, cfg.ModelPath)
		return err
	})
	load(func() (err error) {
		bundle.Texture, err = LoadTexture(fsys, cfg.TexturePath)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	log.Printf("assets: %d vertices, %d indices, %dx%d texture (%d mips) in %s",
		len(bundle.Mesh.Vertices), len(bundle.Mesh.Indices),
		bundle.Texture.Width, bundle.Texture.Height, bundle.Texture.MipLevels,
		hrtime.Since(start))
	return bundle, nil
}
