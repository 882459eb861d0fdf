package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/core/v3/mocks"
)

// slotDevice implements the calls CreateFrameSlots makes before its first
// semaphore. Anything else panics through the nil embedded driver.
type slotDevice struct {
	core1_0.CoreDeviceDriver

	device core1_0.Device
	freed  map[core1_0.CommandBuffer]int
}

func (d *slotDevice) AllocateCommandBuffers(o core1_0.CommandBufferAllocateInfo) ([]core1_0.CommandBuffer, common.VkResult, error) {
	buffers := make([]core1_0.CommandBuffer, o.CommandBufferCount)
	for i := range buffers {
		buffers[i] = mocks.NewDummyCommandBuffer(o.CommandPool, d.device)
	}
	return buffers, core1_0.VKSuccess, nil
}

func (d *slotDevice) CreateSemaphore(*loader.AllocationCallbacks, core1_0.SemaphoreCreateInfo) (core1_0.Semaphore, common.VkResult, error) {
	return core1_0.Semaphore{}, core1_0.VKErrorOutOfDeviceMemory, errors.New("out of device memory")
}

func (d *slotDevice) FreeCommandBuffers(buffers ...core1_0.CommandBuffer) {
	for _, buffer := range buffers {
		d.freed[buffer]++
	}
}

func TestCreateFrameSlotsFreesCommandBuffersOnError(t *testing.T) {
	device := mocks.NewDummyDevice(common.Vulkan1_2, nil)
	fake := &slotDevice{device: device, freed: map[core1_0.CommandBuffer]int{}}
	c := &Context{Device: fake, CommandPool: mocks.NewDummyCommandPool(device)}

	slots, err := c.CreateFrameSlots(3, 128)
	if err == nil {
		t.Fatalf("CreateFrameSlots() = %d slots, want an error", len(slots))
	}

	if len(fake.freed) != 3 {
		t.Errorf("freed %d distinct command buffers, want 3", len(fake.freed))
	}
	for buffer, n := range fake.freed {
		if n != 1 {
			t.Errorf("command buffer %v freed %d times, want 1", buffer, n)
		}
	}
}
