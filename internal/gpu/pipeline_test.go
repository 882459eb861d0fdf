package gpu

import (
	"testing"

	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/fhengine/firehead/internal/scene"
)

func TestDescriptorBindings(t *testing.T) {
	want := []struct {
		binding int
		kind    core1_0.DescriptorType
		stage   core1_0.ShaderStageFlags
	}{
		{BindingCamera, core1_0.DescriptorTypeUniformBuffer, core1_0.StageVertex},
		{BindingTransforms, core1_0.DescriptorTypeStorageBuffer, core1_0.StageVertex},
		{BindingTexture, core1_0.DescriptorTypeSampledImage, core1_0.StageFragment},
		{BindingSampler, core1_0.DescriptorTypeSampler, core1_0.StageFragment},
	}

	got := DescriptorBindings()
	if len(got) != len(want) {
		t.Fatalf("DescriptorBindings() has %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Binding != w.binding || got[i].DescriptorType != w.kind || got[i].StageFlags != w.stage {
			t.Errorf("binding %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestDescriptorPoolSizes(t *testing.T) {
	sizes := DescriptorPoolSizes(2)
	if len(sizes) != 4 {
		t.Fatalf("DescriptorPoolSizes() = %v, want 4 types", sizes)
	}
	for _, size := range sizes {
		if size.DescriptorCount != 2 {
			t.Errorf("pool size for %v = %d, want 2", size.Type, size.DescriptorCount)
		}
	}
}

func TestVertexInput(t *testing.T) {
	bindings := VertexBindings()
	if len(bindings) != 1 || bindings[0].Stride != scene.VertexStride() {
		t.Fatalf("VertexBindings() = %+v, want one binding of stride %d", bindings, scene.VertexStride())
	}

	want := []struct {
		location uint32
		offset   int
		format   core1_0.Format
	}{
		{0, 0, core1_0.FormatR32G32B32SignedFloat},
		{1, 12, core1_0.FormatR32G32B32SignedFloat},
		{2, 24, core1_0.FormatR32G32SignedFloat},
	}
	attrs := VertexAttributes()
	if len(attrs) != len(want) {
		t.Fatalf("VertexAttributes() has %d entries, want %d", len(attrs), len(want))
	}
	for i, w := range want {
		if attrs[i].Location != w.location || attrs[i].Offset != w.offset || attrs[i].Format != w.format {
			t.Errorf("attribute %d = %+v, want location %d offset %d format %v", i, attrs[i], w.location, w.offset, w.format)
		}
	}
}

func TestBytesToBytecode(t *testing.T) {
	got := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	if len(got) != 2 || got[0] != 0x07230203 || got[1] != 0x00010000 {
		t.Errorf("bytesToBytecode() = %#x, want [0x7230203 0x10000]", got)
	}
}
