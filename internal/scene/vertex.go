package scene

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the per-vertex record consumed by the pipeline's binding 0. It is
// comparable so meshes can deduplicate by exact equality.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexAttribute describes one field of Vertex as seen by the vertex shader.
type VertexAttribute struct {
	Location   uint32
	Offset     int
	Components int
}

func VertexStride() int {
	return int(unsafe.Sizeof(Vertex{}))
}

func VertexAttributes() []VertexAttribute {
	v := Vertex{}
	return []VertexAttribute{
		{Location: 0, Offset: int(unsafe.Offsetof(v.Position)), Components: 3},
		{Location: 1, Offset: int(unsafe.Offsetof(v.Color)), Components: 3},
		{Location: 2, Offset: int(unsafe.Offsetof(v.TexCoord)), Components: 2},
	}
}

// CameraUniform mirrors the uniform block at binding 0.
type CameraUniform struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

const CameraUniformSize = int(unsafe.Sizeof(CameraUniform{}))

// Bytes serializes data in host byte order, the layout the device reads.
func Bytes(data any) []byte {
	buf := &bytes.Buffer{}
	// binary.Write only fails on non fixed-size data, which callers never pass.
	_ = binary.Write(buf, binary.NativeEndian, data)
	return buf.Bytes()
}
