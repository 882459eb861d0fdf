package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func capable(name string, discrete bool, maxDim int) *DeviceCaps {
	return &DeviceCaps{
		Name:                name,
		Discrete:            discrete,
		MaxImageDimension2D: maxDim,
		Features: core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
			GeometryShader:    true,
			SampleRateShading: true,
		},
		Extensions: map[string]bool{khr_swapchain.ExtensionName: true},
		QueueFamilies: []QueueFamilyCaps{
			{Flags: core1_0.QueueGraphics | core1_0.QueueCompute | core1_0.QueueTransfer, Present: true},
		},
		SurfaceFormats:      []khr_surface.SurfaceFormat{{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}},
		SurfacePresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
	}
}

func TestSuitabilityMissingRequirement(t *testing.T) {
	req := DefaultRequirements(true)

	tests := []struct {
		name   string
		mutate func(c *DeviceCaps)
	}{
		{"no anisotropy", func(c *DeviceCaps) { c.Features.SamplerAnisotropy = false }},
		{"no geometry shader", func(c *DeviceCaps) { c.Features.GeometryShader = false }},
		{"no sample shading", func(c *DeviceCaps) { c.Features.SampleRateShading = false }},
		{"no swapchain extension", func(c *DeviceCaps) { c.Extensions = map[string]bool{} }},
		{"no formats", func(c *DeviceCaps) { c.SurfaceFormats = nil }},
		{"no present modes", func(c *DeviceCaps) { c.SurfacePresentModes = nil }},
		{"no present family", func(c *DeviceCaps) { c.QueueFamilies[0].Present = false }},
		{"no graphics family", func(c *DeviceCaps) { c.QueueFamilies[0].Flags = core1_0.QueueTransfer }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := capable("gpu", true, 16384)
			tt.mutate(c)
			if got := c.Suitability(req); got != 0 {
				t.Errorf("Suitability() = %d, want 0", got)
			}
		})
	}
}

func TestSuitabilityScore(t *testing.T) {
	req := DefaultRequirements(false)

	if got := capable("integrated", false, 8192).Suitability(req); got != 8192 {
		t.Errorf("integrated Suitability() = %d, want 8192", got)
	}
	if got := capable("discrete", true, 8192).Suitability(req); got != 8192+discreteBonus {
		t.Errorf("discrete Suitability() = %d, want %d", got, 8192+discreteBonus)
	}

	noShading := capable("no shading", false, 4096)
	noShading.Features.SampleRateShading = false
	if got := noShading.Suitability(req); got != 4096 {
		t.Errorf("Suitability() without MSAA requirement = %d, want 4096", got)
	}
}

func TestSelectDevice(t *testing.T) {
	req := DefaultRequirements(true)
	broken := capable("broken", true, 32768)
	broken.Extensions = map[string]bool{}

	tests := []struct {
		name       string
		candidates []*DeviceCaps
		want       int
	}{
		{"discrete beats integrated", []*DeviceCaps{capable("igpu", false, 16384), capable("dgpu", true, 8192)}, 1},
		{"discrete beats larger integrated", []*DeviceCaps{capable("igpu", false, 32768), capable("dgpu", true, 4096)}, 1},
		{"unusable is skipped", []*DeviceCaps{broken, capable("igpu", false, 4096)}, 1},
		{"tie goes to first", []*DeviceCaps{capable("a", true, 8192), capable("b", true, 8192)}, 0},
		{"larger images win", []*DeviceCaps{capable("a", false, 4096), capable("b", false, 16384)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectDevice(tt.candidates, req)
			if err != nil {
				t.Fatalf("SelectDevice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectDevice() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectDeviceNoneCapable(t *testing.T) {
	broken := capable("broken", true, 16384)
	broken.Features.GeometryShader = false

	for _, candidates := range [][]*DeviceCaps{nil, {broken}} {
		if _, err := SelectDevice(candidates, DefaultRequirements(false)); !errors.Is(err, ErrNoCapableDevice) {
			t.Errorf("SelectDevice(%d candidates) error = %v, want ErrNoCapableDevice", len(candidates), err)
		}
	}
}

func TestFindQueueFamilies(t *testing.T) {
	graphics := core1_0.QueueGraphics | core1_0.QueueCompute | core1_0.QueueTransfer

	tests := []struct {
		name                        string
		families                    []QueueFamilyCaps
		graphics, present, transfer int
	}{
		{
			name:     "single family takes every role",
			families: []QueueFamilyCaps{{Flags: graphics, Present: true}},
			graphics: 0, present: 0, transfer: 0,
		},
		{
			name: "dedicated transfer preferred",
			families: []QueueFamilyCaps{
				{Flags: graphics, Present: true},
				{Flags: core1_0.QueueTransfer},
			},
			graphics: 0, present: 0, transfer: 1,
		},
		{
			name: "present on separate family",
			families: []QueueFamilyCaps{
				{Flags: graphics},
				{Flags: core1_0.QueueCompute, Present: true},
			},
			graphics: 0, present: 1, transfer: 0,
		},
		{
			name: "present prefers graphics family",
			families: []QueueFamilyCaps{
				{Flags: core1_0.QueueCompute, Present: true},
				{Flags: graphics, Present: true},
			},
			graphics: 1, present: 1, transfer: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindQueueFamilies(tt.families)
			if !got.IsComplete() {
				t.Fatalf("FindQueueFamilies() incomplete: %+v", got)
			}
			if *got.GraphicsFamily != tt.graphics || *got.PresentFamily != tt.present || *got.TransferFamily != tt.transfer {
				t.Errorf("FindQueueFamilies() = (%d, %d, %d), want (%d, %d, %d)",
					*got.GraphicsFamily, *got.PresentFamily, *got.TransferFamily,
					tt.graphics, tt.present, tt.transfer)
			}
		})
	}
}

func TestQueueFamilyIndicesUnique(t *testing.T) {
	zero, one := 0, 1
	indices := QueueFamilyIndices{GraphicsFamily: &zero, PresentFamily: &zero, TransferFamily: &one}

	got := indices.Unique()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Unique() = %v, want [0 1]", got)
	}
}

func TestMaxUsableSampleCount(t *testing.T) {
	tests := []struct {
		color, depth core1_0.SampleCountFlags
		want         core1_0.SampleCountFlags
	}{
		{core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4 | core1_0.Samples8, core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4, core1_0.Samples4},
		{core1_0.Samples1, core1_0.Samples1 | core1_0.Samples8, core1_0.Samples1},
		{core1_0.Samples1 | core1_0.Samples64, core1_0.Samples1 | core1_0.Samples64, core1_0.Samples64},
	}

	for _, tt := range tests {
		if got := MaxUsableSampleCount(tt.color, tt.depth); got != tt.want {
			t.Errorf("MaxUsableSampleCount(%v, %v) = %v, want %v", tt.color, tt.depth, got, tt.want)
		}
	}
}
