package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// discreteBonus outweighs any MaxImageDimension2D, so a discrete GPU always
// beats an integrated one.
const discreteBonus = 1 << 20

type QueueFamilyCaps struct {
	Flags core1_0.QueueFlags
	// Present reports whether the family can present to the window surface.
	Present bool
}

// QueueFamilyIndices names the family serving each queue role. Roles may share
// a family.
type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
	TransferFamily *int
}

func (i QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil && i.TransferFamily != nil
}

// Unique lists each family once, graphics first.
func (i QueueFamilyIndices) Unique() []int {
	var families []int
	for _, f := range []*int{i.GraphicsFamily, i.PresentFamily, i.TransferFamily} {
		if f == nil {
			continue
		}
		seen := false
		for _, existing := range families {
			seen = seen || existing == *f
		}
		if !seen {
			families = append(families, *f)
		}
	}
	return families
}

// FindQueueFamilies checks each capability independently, so a single family
// can take several roles. A dedicated transfer family is preferred when present.
func FindQueueFamilies(families []QueueFamilyCaps) QueueFamilyIndices {
	var indices QueueFamilyIndices
	var anyTransfer *int

	for idx, family := range families {
		if indices.GraphicsFamily == nil && family.Flags&core1_0.QueueGraphics != 0 {
			indices.GraphicsFamily = &idx
		}
		if family.Present && (indices.PresentFamily == nil ||
			(indices.GraphicsFamily != nil && *indices.GraphicsFamily == idx)) {
			indices.PresentFamily = &idx
		}

		// Graphics and compute queues support transfers implicitly.
		transferCapable := family.Flags&(core1_0.QueueTransfer|core1_0.QueueGraphics|core1_0.QueueCompute) != 0
		if anyTransfer == nil && transferCapable {
			anyTransfer = &idx
		}
		if indices.TransferFamily == nil && family.Flags&core1_0.QueueTransfer != 0 && family.Flags&core1_0.QueueGraphics == 0 {
			indices.TransferFamily = &idx
		}
	}

	if indices.TransferFamily == nil {
		indices.TransferFamily = anyTransfer
	}
	return indices
}

// Requirements are what a device must offer to be scored at all.
type Requirements struct {
	Extensions        []string
	SamplerAnisotropy bool
	GeometryShader    bool
	SampleRateShading bool
}

func DefaultRequirements(msaa bool) Requirements {
	return Requirements{
		Extensions:        []string{khr_swapchain.ExtensionName},
		SamplerAnisotropy: true,
		GeometryShader:    true,
		SampleRateShading: msaa,
	}
}

// DeviceCaps is the capability snapshot of one physical device.
type DeviceCaps struct {
	Name                string
	Discrete            bool
	MaxImageDimension2D int
	Features            core1_0.PhysicalDeviceFeatures
	Extensions          map[string]bool
	QueueFamilies       []QueueFamilyCaps

	SurfaceFormats      []khr_surface.SurfaceFormat
	SurfacePresentModes []khr_surface.PresentMode

	ColorSampleCounts core1_0.SampleCountFlags
	DepthSampleCounts core1_0.SampleCountFlags
}

// Suitability is zero for unusable devices. Usable devices score their largest
// 2D image dimension plus a bonus when discrete.
func (c *DeviceCaps) Suitability(req Requirements) int {
	if req.SamplerAnisotropy && !c.Features.SamplerAnisotropy {
		return 0
	}
	if req.GeometryShader && !c.Features.GeometryShader {
		return 0
	}
	if req.SampleRateShading && !c.Features.SampleRateShading {
		return 0
	}
	for _, ext := range req.Extensions {
		if !c.Extensions[ext] {
			return 0
		}
	}
	if !FindQueueFamilies(c.QueueFamilies).IsComplete() {
		return 0
	}
	if len(c.SurfaceFormats) == 0 || len(c.SurfacePresentModes) == 0 {
		return 0
	}

	score := c.MaxImageDimension2D
	if c.Discrete {
		score += discreteBonus
	}
	return score
}

// SelectDevice returns the index of the best scoring candidate. Ties go to the
// first enumerated device.
func SelectDevice(candidates []*DeviceCaps, req Requirements) (int, error) {
	best, bestScore := -1, 0
	for i, c := range candidates {
		if score := c.Suitability(req); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return -1, ErrNoCapableDevice
	}
	return best, nil
}

// MaxUsableSampleCount is the highest sample count supported for both color and
// depth attachments.
func MaxUsableSampleCount(color, depth core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	counts := color & depth
	for _, samples := range []core1_0.SampleCountFlags{
		core1_0.Samples64,
		core1_0.Samples32,
		core1_0.Samples16,
		core1_0.Samples8,
		core1_0.Samples4,
		core1_0.Samples2,
	} {
		if counts&samples != 0 {
			return samples
		}
	}
	return core1_0.Samples1
}
