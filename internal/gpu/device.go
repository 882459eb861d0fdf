package gpu

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type candidate struct {
	device     core1_0.PhysicalDevice
	properties *core1_0.PhysicalDeviceProperties
	caps       *DeviceCaps
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	var candidates []candidate
	var caps []*DeviceCaps
	for _, device := range physicalDevices {
		cand, err := c.queryDevice(device)
		if err != nil {
			return err
		}
		candidates = append(candidates, cand)
		caps = append(caps, cand.caps)
	}

	req := DefaultRequirements(c.cfg.EnableMSAA)
	for _, cand := range caps {
		log.Printf("found GPU %q (suitability %d)", cand.Name, cand.Suitability(req))
	}

	chosen, err := SelectDevice(caps, req)
	if err != nil {
		return err
	}

	picked := candidates[chosen]
	c.PhysicalDevice = picked.device
	c.Properties = picked.properties
	c.Caps = picked.caps
	c.Indices = FindQueueFamilies(picked.caps.QueueFamilies)
	c.memoryProperties = c.instanceDriver.GetPhysicalDeviceMemoryProperties(picked.device)
	if c.cfg.EnableMSAA {
		c.MSAASamples = MaxUsableSampleCount(picked.caps.ColorSampleCounts, picked.caps.DepthSampleCounts)
	}

	log.Printf("selected GPU %q (graphics family %d, present family %d, transfer family %d, %s)",
		picked.caps.Name, *c.Indices.GraphicsFamily, *c.Indices.PresentFamily, *c.Indices.TransferFamily, c.MSAASamples)
	return nil
}

func (c *Context) queryDevice(device core1_0.PhysicalDevice) (candidate, error) {
	properties, err := c.instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return candidate{}, err
	}

	caps := &DeviceCaps{
		Name:                properties.DriverName,
		Discrete:            properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU,
		MaxImageDimension2D: properties.Limits.MaxImageDimension2D,
		Features:            *c.instanceDriver.GetPhysicalDeviceFeatures(device),
		Extensions:          make(map[string]bool),
		ColorSampleCounts:   properties.Limits.FramebufferColorSampleCounts,
		DepthSampleCounts:   properties.Limits.FramebufferDepthSampleCounts,
	}

	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return candidate{}, err
	}
	for name := range extensions {
		caps.Extensions[name] = true
	}

	for idx, family := range c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device) {
		supported, _, err := c.surfaceDriver.GetPhysicalDeviceSurfaceSupport(c.surface, device, idx)
		if err != nil {
			return candidate{}, err
		}
		caps.QueueFamilies = append(caps.QueueFamilies, QueueFamilyCaps{Flags: family.QueueFlags, Present: supported})
	}

	// Surface support only makes sense to query on devices with a swapchain.
	if caps.Extensions[khr_swapchain.ExtensionName] {
		support, err := c.querySwapchainSupport(device)
		if err != nil {
			return candidate{}, err
		}
		caps.SurfaceFormats = support.Formats
		caps.SurfacePresentModes = support.PresentModes
	}

	return candidate{device: device, properties: properties, caps: caps}, nil
}

func (c *Context) createLogicalDevice() error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range c.Indices.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	req := DefaultRequirements(c.cfg.EnableMSAA)
	extensionNames := append([]string(nil), req.Extensions...)
	if c.Caps.Extensions[khr_portability_subset.ExtensionName] {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := c.instanceDriver.CreateDevice(c.PhysicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: req.SamplerAnisotropy,
			GeometryShader:    req.GeometryShader,
			SampleRateShading: req.SampleRateShading,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.Device, err = c.instanceDriver.BuildDeviceDriver(device)
	if err != nil {
		return err
	}

	c.GraphicsQueue = c.Device.GetQueue(*c.Indices.GraphicsFamily, 0)
	c.PresentQueue = c.Device.GetQueue(*c.Indices.PresentFamily, 0)
	c.TransferQueue = c.Device.GetQueue(*c.Indices.TransferFamily, 0)
	c.swapchainDriver = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.Device)
	return nil
}

// FormatSupported reports whether format has every feature in features for the
// given tiling.
func (c *Context) FormatSupported(format core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) bool {
	props := c.instanceDriver.GetPhysicalDeviceFormatProperties(c.PhysicalDevice, format)
	return formatHasFeatures(props, tiling, features)
}

func formatHasFeatures(props *core1_0.FormatProperties, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) bool {
	switch tiling {
	case core1_0.ImageTilingLinear:
		return props.LinearTilingFeatures&features == features
	case core1_0.ImageTilingOptimal:
		return props.OptimalTilingFeatures&features == features
	}
	return false
}

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// FindDepthFormat picks the first depth format usable as an optimal-tiled
// depth attachment.
func (c *Context) FindDepthFormat() (core1_0.Format, error) {
	for _, format := range depthFormatCandidates {
		if c.FormatSupported(format, core1_0.ImageTilingOptimal, core1_0.FormatFeatureDepthStencilAttachment) {
			return format, nil
		}
	}
	return 0, errors.WithStack(ErrNoSupportedDepthFormat)
}

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}
