package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// FrameSlot is everything one frame in flight owns. The fence guards the
// command buffer, the uniform buffer and the slot's staging region.
type FrameSlot struct {
	device core1_0.CoreDeviceDriver

	CommandBuffer  core1_0.CommandBuffer
	ImageAvailable core1_0.Semaphore
	RenderFinished core1_0.Semaphore
	InFlight       core1_0.Fence

	Uniform       *Buffer
	UniformMapped []byte
}

// CreateFrameSlots creates count slots. Fences start signaled so the first
// wait on each slot returns at once.
func (c *Context) CreateFrameSlots(count, uniformSize int) ([]*FrameSlot, error) {
	buffers, _, err := c.Device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.CommandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate frame command buffers")
	}

	// Slots own buffers[:len(slots)]; the rest are freed here on failure.
	slots := make([]*FrameSlot, 0, count)
	fail := func(err error) ([]*FrameSlot, error) {
		for _, slot := range slots {
			slot.Destroy()
		}
		if rest := buffers[len(slots):]; len(rest) > 0 {
			c.Device.FreeCommandBuffers(rest...)
		}
		return nil, err
	}

	for i := 0; i < count; i++ {
		slot := &FrameSlot{device: c.Device, CommandBuffer: buffers[i]}
		slots = append(slots, slot)

		slot.ImageAvailable, _, err = c.Device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return fail(err)
		}

		slot.RenderFinished, _, err = c.Device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return fail(err)
		}

		slot.InFlight, _, err = c.Device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return fail(err)
		}

		slot.Uniform, err = c.NewBuffer(uniformSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return fail(err)
		}

		slot.UniformMapped, err = slot.Uniform.Map()
		if err != nil {
			return fail(err)
		}
	}

	return slots, nil
}

func (s *FrameSlot) Wait() error {
	_, err := s.device.WaitForFences(true, common.NoTimeout, s.InFlight)
	return err
}

func (s *FrameSlot) Reset() error {
	_, err := s.device.ResetFences(s.InFlight)
	return err
}

func (s *FrameSlot) Destroy() {
	if s.Uniform != nil {
		s.Uniform.Destroy()
		s.Uniform = nil
		s.UniformMapped = nil
	}
	if s.InFlight.Initialized() {
		s.device.DestroyFence(s.InFlight, nil)
		s.InFlight = core1_0.Fence{}
	}
	if s.RenderFinished.Initialized() {
		s.device.DestroySemaphore(s.RenderFinished, nil)
		s.RenderFinished = core1_0.Semaphore{}
	}
	if s.ImageAvailable.Initialized() {
		s.device.DestroySemaphore(s.ImageAvailable, nil)
		s.ImageAvailable = core1_0.Semaphore{}
	}
	if s.CommandBuffer.Initialized() {
		s.device.FreeCommandBuffers(s.CommandBuffer)
		s.CommandBuffer = core1_0.CommandBuffer{}
	}
}
