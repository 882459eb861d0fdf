// Package firehead holds the assets shipped with the renderer.
package firehead

import "embed"

// Assets is the assets directory. The paths in config.Default are relative to
// its root.
//
//go:embed assets
var Assets embed.FS
