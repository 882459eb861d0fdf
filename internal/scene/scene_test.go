package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func quad() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-1, -1, 0}},
			{Position: mgl32.Vec3{1, -1, 0}},
			{Position: mgl32.Vec3{1, 1, 0}},
			{Position: mgl32.Vec3{-1, 1, 0}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func TestNewGrid(t *testing.T) {
	s := NewGrid(quad(), 4, 3, 2)

	if got := s.InstanceCount(); got != 12 {
		t.Fatalf("InstanceCount() = %d, want 12", got)
	}
	first := s.Transforms()[0].Col(3)
	last := s.Transforms()[11].Col(3)
	if first.X() != -3 || first.Z() != -2 {
		t.Errorf("first instance at %v, want x=-3 z=-2", first)
	}
	if last.X() != 3 || last.Z() != 2 {
		t.Errorf("last instance at %v, want x=3 z=2", last)
	}
}

func TestPackOffsets(t *testing.T) {
	s := NewGrid(quad(), 2, 1, 1)
	second := &Model{Mesh: quad(), Transforms: []mgl32.Mat4{mgl32.Ident4()}}
	s.Models = append(s.Models, second)

	vertices, indices := s.Pack()

	if len(vertices) != 8 || len(indices) != 12 {
		t.Fatalf("Pack() = %d vertices, %d indices; want 8, 12", len(vertices), len(indices))
	}
	if second.FirstIndex != 6 || second.VertexOffset != 4 || second.FirstInstance != 2 {
		t.Errorf("second model offsets = (%d, %d, %d), want (6, 4, 2)",
			second.FirstIndex, second.VertexOffset, second.FirstInstance)
	}
	if s.InstanceCount() != 3 {
		t.Errorf("InstanceCount() = %d, want 3", s.InstanceCount())
	}
}

func TestAnimateRewritesTransforms(t *testing.T) {
	s := NewGrid(quad(), 2, 2, 1)
	before := append([]mgl32.Mat4(nil), s.Transforms()...)

	s.Animate(1.25)

	changed := false
	for i := range before {
		if before[i] != s.Transforms()[i] {
			changed = true
		}
	}
	if !changed {
		t.Error("Animate() left every transform unchanged")
	}
	if got, want := len(s.TransformBytes()), 4*64; got != want {
		t.Errorf("len(TransformBytes()) = %d, want %d", got, want)
	}
}

func TestVertexLayout(t *testing.T) {
	if got := VertexStride(); got != 32 {
		t.Errorf("VertexStride() = %d, want 32", got)
	}
	want := []VertexAttribute{{0, 0, 3}, {1, 12, 3}, {2, 24, 2}}
	for i, attr := range VertexAttributes() {
		if attr != want[i] {
			t.Errorf("attribute %d = %+v, want %+v", i, attr, want[i])
		}
	}
	if CameraUniformSize != 128 {
		t.Errorf("CameraUniformSize = %d, want 128", CameraUniformSize)
	}
}
