// Package gpu owns the Vulkan objects of the renderer: instance, device, queues,
// swapchain, buffers, images, pipeline and per-frame synchronization.
//
// Every resource is an owning wrapper with an idempotent Destroy. Context.Close
// tears the device-level objects down in reverse creation order.
package gpu

import (
	"log"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/fhengine/firehead/internal/config"
)

// Window is what the GPU layer needs from the windowing system.
type Window interface {
	VulkanProcAddr() unsafe.Pointer
	VulkanInstanceExtensions() []string
	CreateSurface(instance core1_0.Instance, surfaceDriver khr_surface.ExtensionDriver) (khr_surface.Surface, error)
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (int, int)
}

type Context struct {
	cfg    config.Config
	window Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	Device         core1_0.CoreDeviceDriver

	debugDriver     ext_debug_utils.ExtensionDriver
	debugMessenger  ext_debug_utils.DebugUtilsMessenger
	surfaceDriver   khr_surface.ExtensionDriver
	surface         khr_surface.Surface
	swapchainDriver khr_swapchain.ExtensionDriver

	PhysicalDevice   core1_0.PhysicalDevice
	Properties       *core1_0.PhysicalDeviceProperties
	Caps             *DeviceCaps
	Indices          QueueFamilyIndices
	MSAASamples      core1_0.SampleCountFlags
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties

	GraphicsQueue core1_0.Queue
	PresentQueue  core1_0.Queue
	TransferQueue core1_0.Queue

	CommandPool core1_0.CommandPool
}

// NewContext brings the device up to the point where a swapchain can be built:
// instance, debug messenger, surface, device selection, logical device, queues
// and the primary command pool.
func NewContext(window Window, cfg config.Config) (*Context, error) {
	c := &Context{cfg: cfg, window: window, MSAASamples: core1_0.Samples1}

	var err error
	c.globalDriver, err = core.CreateDriverFromProcAddr(window.VulkanProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"create instance", c.createInstance},
		{"setup debug messenger", c.setupDebugMessenger},
		{"create surface", c.createSurface},
		{"pick physical device", c.pickPhysicalDevice},
		{"create logical device", c.createLogicalDevice},
		{"create command pool", c.createCommandPool},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}

	return c, nil
}

func (c *Context) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    c.cfg.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         config.EngineName,
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := c.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range c.window.VulkanInstanceExtensions() {
		if _, hasExt := extensions[ext]; !hasExt {
			return errors.Newf("missing window extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if c.cfg.EnableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	if _, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]; enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if c.cfg.EnableValidation {
		layers, _, err := c.globalDriver.AvailableLayers()
		if err != nil {
			return err
		}

		for _, layer := range c.cfg.ValidationLayers {
			if _, hasValidation := layers[layer]; !hasValidation {
				return errors.Wrapf(ErrValidationUnavailable, "%s (install the Vulkan SDK or build with -tags release)", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = c.debugMessengerOptions()
	}

	instance, _, err := c.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return err
	}

	c.instanceDriver, err = c.globalDriver.BuildInstanceDriver(instance)
	return err
}

func (c *Context) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("validation layer: [%s %s] - %s", severity, msgType, data.Message)
	return false
}

func (c *Context) setupDebugMessenger() error {
	if !c.cfg.EnableValidation {
		return nil
	}

	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, c.debugMessengerOptions())
	return err
}

func (c *Context) createSurface() error {
	c.surfaceDriver = khr_surface.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	surface, err := c.window.CreateSurface(c.instanceDriver.Instance(), c.surfaceDriver)
	if err != nil {
		return err
	}

	c.surface = surface
	return nil
}

func (c *Context) createCommandPool() error {
	pool, _, err := c.Device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *c.Indices.GraphicsFamily,
	})
	if err != nil {
		return err
	}

	c.CommandPool = pool
	return nil
}

// WaitIdle blocks until every queue of the device has drained.
func (c *Context) WaitIdle() error {
	if c.Device == nil {
		return nil
	}
	_, err := c.Device.DeviceWaitIdle()
	return err
}

func (c *Context) Close() {
	if c.CommandPool.Initialized() {
		c.Device.DestroyCommandPool(c.CommandPool, nil)
		c.CommandPool = core1_0.CommandPool{}
	}

	if c.Device != nil {
		c.Device.DestroyDevice(nil)
		c.Device = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.surface.Initialized() {
		c.surfaceDriver.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}
