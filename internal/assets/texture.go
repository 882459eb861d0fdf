package assets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"math"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Texture is decoded RGBA8 pixel data, tightly packed.
type Texture struct {
	Width, Height int
	MipLevels     int
	Pixels        []byte
}

func LoadTexture(fsys fs.FS, name string) (*Texture, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load texture %s", name)
	}
	defer file.Close()

	decoded, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", name)
	}

	tex, err := NewTexture(decoded)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s (%s)", name, format)
	}
	return tex, nil
}

// NewTexture converts any image to tightly packed RGBA8.
func NewTexture(img image.Image) (*Texture, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("empty image")
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &Texture{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		MipLevels: MipLevels(bounds.Dx(), bounds.Dy()),
		Pixels:    rgba.Pix,
	}, nil
}

// MipLevels is the length of the full mip chain down to 1x1.
func MipLevels(width, height int) int {
	largest := max(width, height)
	if largest < 1 {
		return 1
	}
	return int(math.Floor(math.Log2(float64(largest)))) + 1
}
