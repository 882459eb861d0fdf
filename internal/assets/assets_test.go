package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/bmp"

	"github.com/fhengine/firehead"
	"github.com/fhengine/firehead/internal/config"
)

const quadOBJ = `o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func fileFS(name string, data []byte) fstest.MapFS {
	return fstest.MapFS{name: &fstest.MapFile{Data: data}}
}

func fakeSPIRV() []byte {
	words := []uint32{spirvMagic, 0x00010000, 0, 1, 0}
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, words)
	return buf.Bytes()
}

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestLoadModelDeduplicates(t *testing.T) {
	mesh, err := LoadModel(fileFS("quad.obj", []byte(quadOBJ)), "quad.obj")
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("len(Vertices) = %d, want 4", len(mesh.Vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(want) {
		t.Fatalf("Indices = %v, want %v", mesh.Indices, want)
	}
	for i := range want {
		if mesh.Indices[i] != want[i] {
			t.Errorf("Indices = %v, want %v", mesh.Indices, want)
			break
		}
	}
	if v := mesh.Vertices[0].TexCoord; v[0] != 0 || v[1] != 1 {
		t.Errorf("TexCoord[0] = %v, want flipped V (0, 1)", v)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	if _, err := LoadModel(fstest.MapFS{}, "missing.obj"); err == nil {
		t.Error("LoadModel(missing) error = nil")
	}
}

func TestLoadTexturePNG(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, checker(8, 4)); err != nil {
		t.Fatal(err)
	}
	tex, err := LoadTexture(fileFS("checker.png", buf.Bytes()), "checker.png")
	if err != nil {
		t.Fatalf("LoadTexture() error = %v", err)
	}
	if tex.Width != 8 || tex.Height != 4 {
		t.Errorf("size = %dx%d, want 8x4", tex.Width, tex.Height)
	}
	if len(tex.Pixels) != 8*4*4 {
		t.Errorf("len(Pixels) = %d, want %d", len(tex.Pixels), 8*4*4)
	}
	if tex.Pixels[0] != 255 || tex.Pixels[2] != 0 || tex.Pixels[4] != 0 || tex.Pixels[6] != 255 {
		t.Errorf("first two pixels = %v, want red then blue", tex.Pixels[:8])
	}
	if tex.MipLevels != 4 {
		t.Errorf("MipLevels = %d, want 4", tex.MipLevels)
	}
}

func TestLoadTextureBMP(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := bmp.Encode(buf, checker(3, 3)); err != nil {
		t.Fatal(err)
	}
	tex, err := LoadTexture(fileFS("checker.bmp", buf.Bytes()), "checker.bmp")
	if err != nil {
		t.Fatalf("LoadTexture() error = %v", err)
	}
	if tex.Width != 3 || len(tex.Pixels) != 3*3*4 {
		t.Errorf("got %dx%d with %d bytes", tex.Width, tex.Height, len(tex.Pixels))
	}
}

func TestLoadTextureMalformed(t *testing.T) {
	if _, err := LoadTexture(fileFS("bad.png", []byte("not an image")), "bad.png"); err == nil {
		t.Error("LoadTexture(malformed) error = nil")
	}
}

func TestMipLevels(t *testing.T) {
	tests := []struct{ w, h, want int }{
		{1, 1, 1},
		{2, 1, 2},
		{512, 512, 10},
		{1024, 300, 11},
		{1000, 10, 10},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := MipLevels(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestLoadShader(t *testing.T) {
	fsys := fstest.MapFS{
		"ok.spv":  &fstest.MapFile{Data: fakeSPIRV()},
		"bad.spv": &fstest.MapFile{Data: []byte("glsl source, not spir-v")},
	}

	if _, err := LoadShader(fsys, "ok.spv"); err != nil {
		t.Errorf("LoadShader(valid) error = %v", err)
	}
	if _, err := LoadShader(fsys, "bad.spv"); !errors.Is(err, ErrInvalidShader) {
		t.Errorf("LoadShader(invalid) error = %v, want ErrInvalidShader", err)
	}
	if _, err := LoadShader(fsys, "missing.spv"); err == nil {
		t.Error("LoadShader(missing) error = nil")
	}
}

func TestLoadShaderCompilesWGSL(t *testing.T) {
	src := `@vertex
fn main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`
	data, err := LoadShader(fileFS("tri.wgsl", []byte(src)), "tri.wgsl")
	if err != nil {
		t.Fatalf("LoadShader(wgsl) error = %v", err)
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		t.Errorf("compiled shader magic = 0x%08x", binary.LittleEndian.Uint32(data))
	}
}

func TestLoadBundle(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, checker(2, 2)); err != nil {
		t.Fatal(err)
	}
	fsys := fstest.MapFS{
		"vert.spv": &fstest.MapFile{Data: fakeSPIRV()},
		"frag.spv": &fstest.MapFile{Data: fakeSPIRV()},
		"quad.obj": &fstest.MapFile{Data: []byte(quadOBJ)},
		"tex.png":  &fstest.MapFile{Data: buf.Bytes()},
	}

	cfg := config.Default()
	cfg.VertexShaderPath = "vert.spv"
	cfg.FragmentShaderPath = "frag.spv"
	cfg.ModelPath = "quad.obj"
	cfg.TexturePath = "tex.png"

	bundle, err := Load(context.Background(), fsys, cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(bundle.Mesh.Indices) != 6 || bundle.Texture.Width != 2 {
		t.Errorf("bundle = %d indices, %d wide texture", len(bundle.Mesh.Indices), bundle.Texture.Width)
	}

	cfg.TexturePath = "missing.png"
	if _, err := Load(context.Background(), fsys, cfg); err == nil {
		t.Error("Load() with a missing texture error = nil")
	}
}

func TestLoadDefaultAssets(t *testing.T) {
	bundle, err := Load(context.Background(), firehead.Assets, config.Default())
	if err != nil {
		t.Fatalf("Load(default config) error = %v", err)
	}

	for name, code := range map[string][]byte{"vertex": bundle.VertexShader, "fragment": bundle.FragmentShader} {
		if err := ValidateSPIRV(code); err != nil {
			t.Errorf("%s shader: %v", name, err)
		}
	}
	if len(bundle.Mesh.Vertices) == 0 || len(bundle.Mesh.Indices)%3 != 0 {
		t.Errorf("crate mesh = %d vertices, %d indices", len(bundle.Mesh.Vertices), len(bundle.Mesh.Indices))
	}
	if bundle.Texture.Width != 256 || bundle.Texture.Height != 256 {
		t.Errorf("crate texture = %dx%d, want 256x256", bundle.Texture.Width, bundle.Texture.Height)
	}
}
