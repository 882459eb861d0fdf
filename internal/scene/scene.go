// Package scene holds the instanced grid, its animation and the camera.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is static geometry shared by every instance of a model.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

type Model struct {
	Mesh
	Transforms []mgl32.Mat4

	// Set by Scene.Pack.
	FirstIndex    int
	VertexOffset  int
	FirstInstance int

	base []mgl32.Vec3
}

type Scene struct {
	Models []*Model

	transforms []mgl32.Mat4
}

// NewGrid lays width*depth instances of mesh on the XZ plane, centred on the origin.
func NewGrid(mesh Mesh, width, depth int, spacing float32) *Scene {
	model := &Model{Mesh: mesh}
	offsetX := float32(width-1) * spacing / 2
	offsetZ := float32(depth-1) * spacing / 2
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			pos := mgl32.Vec3{float32(x)*spacing - offsetX, 0, float32(z)*spacing - offsetZ}
			model.base = append(model.base, pos)
			model.Transforms = append(model.Transforms, mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()))
		}
	}

	s := &Scene{Models: []*Model{model}}
	s.Pack()
	return s
}

// Pack assigns each model its slice of the shared vertex, index and transform
// arrays and returns the concatenated geometry.
func (s *Scene) Pack() ([]Vertex, []uint32) {
	var vertices []Vertex
	var indices []uint32
	instances := 0
	for _, m := range s.Models {
		m.FirstIndex = len(indices)
		m.VertexOffset = len(vertices)
		m.FirstInstance = instances
		vertices = append(vertices, m.Vertices...)
		indices = append(indices, m.Indices...)
		instances += len(m.Transforms)
	}
	s.transforms = make([]mgl32.Mat4, instances)
	s.gather()
	return vertices, indices
}

func (s *Scene) InstanceCount() int {
	return len(s.transforms)
}

// Transforms returns the concatenated per-instance transforms, indexed by
// instance id in the vertex shader.
func (s *Scene) Transforms() []mgl32.Mat4 {
	return s.transforms
}

func (s *Scene) TransformBytes() []byte {
	return Bytes(s.transforms)
}

// Animate spins and bobs every instance. t is seconds since start.
func (s *Scene) Animate(t float64) {
	for _, m := range s.Models {
		for i, pos := range m.base {
			phase := float64(i) * 0.37
			angle := float32(math.Mod(t*0.5+phase, 2*math.Pi))
			bob := float32(math.Sin(t*2+phase)) * 0.25
			m.Transforms[i] = mgl32.Translate3D(pos.X(), pos.Y()+bob, pos.Z()).Mul4(mgl32.HomogRotate3DY(angle))
		}
	}
	s.gather()
}

func (s *Scene) gather() {
	for _, m := range s.Models {
		copy(s.transforms[m.FirstInstance:], m.Transforms)
	}
}
