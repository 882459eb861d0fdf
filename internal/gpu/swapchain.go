package gpu

import (
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// undefinedExtent marks a surface whose size is decided by the swapchain.
const undefinedExtent = -1

type SwapchainSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupport, error) {
	var details SwapchainSupport
	var err error

	details.Capabilities, _, err = c.surfaceDriver.GetPhysicalDeviceSurfaceCapabilities(c.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = c.surfaceDriver.GetPhysicalDeviceSurfaceFormats(c.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = c.surfaceDriver.GetPhysicalDeviceSurfacePresentModes(c.surface, device)
	return details, err
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB in the sRGB nonlinear space and
// falls back to the first format offered.
func ChooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

// ChoosePresentMode prefers mailbox. FIFO is always available.
func ChoosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range available {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// ChooseExtent uses the surface's current extent when it has one, otherwise
// the framebuffer size clamped to the surface limits.
func ChooseExtent(caps *khr_surface.SurfaceCapabilities, fbWidth, fbHeight int) core1_0.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent && caps.CurrentExtent.Width != 0xFFFFFFFF {
		return caps.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(fbWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(fbHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ImageCount asks for one image over the minimum, capped by the maximum when
// the surface has one.
func ImageCount(caps *khr_surface.SurfaceCapabilities) int {
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && caps.MaxImageCount < imageCount {
		imageCount = caps.MaxImageCount
	}
	return imageCount
}

// SwapchainPlan is every parameter of a swapchain that depends on the surface
// and the framebuffer size.
type SwapchainPlan struct {
	Format      khr_surface.SurfaceFormat
	PresentMode khr_surface.PresentMode
	Extent      core1_0.Extent2D
	ImageCount  int
	Transform   khr_surface.SurfaceTransformFlags
}

func PlanSwapchain(support SwapchainSupport, fbWidth, fbHeight int) SwapchainPlan {
	return SwapchainPlan{
		Format:      ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, fbWidth, fbHeight),
		ImageCount:  ImageCount(support.Capabilities),
		Transform:   support.Capabilities.CurrentTransform,
	}
}

// Swapchain owns the presentable images and their views.
type Swapchain struct {
	driver khr_swapchain.ExtensionDriver
	device core1_0.CoreDeviceDriver

	Handle khr_swapchain.Swapchain
	Images []core1_0.Image
	Views  []core1_0.ImageView
	Format core1_0.Format
	Extent core1_0.Extent2D
	Mode   khr_surface.PresentMode
}

// CreateSwapchain builds a swapchain for the current surface size.
func (c *Context) CreateSwapchain() (*Swapchain, error) {
	support, err := c.querySwapchainSupport(c.PhysicalDevice)
	if err != nil {
		return nil, err
	}

	fbWidth, fbHeight := c.window.FramebufferSize()
	plan := PlanSwapchain(support, fbWidth, fbHeight)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if *c.Indices.GraphicsFamily != *c.Indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *c.Indices.GraphicsFamily, *c.Indices.PresentFamily)
	}

	handle, _, err := c.swapchainDriver.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: c.surface,

		MinImageCount:    plan.ImageCount,
		ImageFormat:      plan.Format.Format,
		ImageColorSpace:  plan.Format.ColorSpace,
		ImageExtent:      plan.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   plan.Transform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    plan.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, err
	}

	s := &Swapchain{
		driver: c.swapchainDriver,
		device: c.Device,
		Handle: handle,
		Format: plan.Format.Format,
		Extent: plan.Extent,
		Mode:   plan.PresentMode,
	}

	s.Images, _, err = c.swapchainDriver.GetSwapchainImages(handle)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	for _, image := range s.Images {
		view, err := c.createImageView(image, s.Format, core1_0.ImageAspectColor, 1)
		if err != nil {
			s.Destroy()
			return nil, err
		}
		s.Views = append(s.Views, view)
	}

	return s, nil
}

// AcquireNextImage returns the image index along with the raw result so the
// caller can tell out-of-date and suboptimal apart.
func (s *Swapchain) AcquireNextImage(signal core1_0.Semaphore) (int, common.VkResult, error) {
	return s.driver.AcquireNextImage(s.Handle, common.NoTimeout, &signal, nil)
}

func (s *Swapchain) Present(queue core1_0.Queue, wait core1_0.Semaphore, imageIndex int) (common.VkResult, error) {
	return s.driver.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait},
		Swapchains:     []khr_swapchain.Swapchain{s.Handle},
		ImageIndices:   []int{imageIndex},
	})
}

func (s *Swapchain) Destroy() {
	for _, view := range s.Views {
		s.device.DestroyImageView(view, nil)
	}
	s.Views = nil
	s.Images = nil

	if s.Handle.Initialized() {
		s.driver.DestroySwapchain(s.Handle, nil)
		s.Handle = khr_swapchain.Swapchain{}
	}
}
