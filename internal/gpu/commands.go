package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// OneShot records fn into a temporary command buffer, submits it to the
// graphics queue and waits for the queue to go idle before freeing the buffer.
func (c *Context) OneShot(fn func(cb core1_0.CommandBuffer) error) error {
	return c.oneShot(c.GraphicsQueue, false, fn)
}

// TransferOneShot is OneShot on the transfer queue.
func (c *Context) TransferOneShot(fn func(cb core1_0.CommandBuffer) error) error {
	return c.oneShot(c.TransferQueue, c.dedicatedTransfer(), fn)
}

func (c *Context) dedicatedTransfer() bool {
	return *c.Indices.TransferFamily != *c.Indices.GraphicsFamily
}

// The primary pool belongs to the graphics family, so a transfer queue of
// another family gets a transient pool of its own.
func (c *Context) oneShot(queue core1_0.Queue, ownPool bool, fn func(cb core1_0.CommandBuffer) error) error {
	pool := c.CommandPool
	if ownPool {
		transient, _, err := c.Device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
			Flags:            core1_0.CommandPoolCreateTransient,
			QueueFamilyIndex: *c.Indices.TransferFamily,
		})
		if err != nil {
			return err
		}
		defer c.Device.DestroyCommandPool(transient, nil)
		pool = transient
	}

	buffers, _, err := c.Device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return err
	}

	buffer := buffers[0]
	defer c.Device.FreeCommandBuffers(buffer)

	_, err = c.Device.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return err
	}

	if err := fn(buffer); err != nil {
		return errors.Wrap(err, "record one-shot commands")
	}

	_, err = c.Device.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = c.Device.QueueSubmit(queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return err
	}

	_, err = c.Device.QueueWaitIdle(queue)
	return err
}
