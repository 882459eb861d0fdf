package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/fhengine/firehead/internal/upload"
)

// Buffer is a VkBuffer with its own dedicated allocation.
type Buffer struct {
	device core1_0.CoreDeviceDriver
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
	size   int
	mapped []byte
}

var _ upload.Buffer = (*Buffer)(nil)

func (b *Buffer) Size() int { return b.size }

// Map maps the whole allocation. Repeated calls return the same slice.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}

	ptr, _, err := b.device.MapMemory(b.Memory, 0, b.size, 0)
	if err != nil {
		return nil, err
	}

	b.mapped = unsafe.Slice((*byte)(ptr), b.size)
	return b.mapped, nil
}

func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.device.UnmapMemory(b.Memory)
	b.mapped = nil
}

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.Handle.Initialized() {
		b.device.DestroyBuffer(b.Handle, nil)
		b.Handle = core1_0.Buffer{}
	}
	if b.Memory.Initialized() {
		b.device.FreeMemory(b.Memory, nil)
		b.Memory = core1_0.DeviceMemory{}
	}
}

// CreateBuffer satisfies upload.Device.
func (c *Context) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (upload.Buffer, error) {
	return c.NewBuffer(size, usage, properties)
}

func (c *Context) NewBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	createInfo := core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	}
	// Buffers filled on a dedicated transfer queue are read by the graphics queue.
	if c.dedicatedTransfer() {
		createInfo.SharingMode = core1_0.SharingModeConcurrent
		createInfo.QueueFamilyIndices = []int{*c.Indices.GraphicsFamily, *c.Indices.TransferFamily}
	}

	handle, _, err := c.Device.CreateBuffer(nil, createInfo)
	if err != nil {
		return nil, err
	}

	b := &Buffer{device: c.Device, Handle: handle, size: size}

	memRequirements := c.Device.GetBufferMemoryRequirements(handle)
	memoryTypeIndex, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		b.Destroy()
		return nil, err
	}

	b.Memory, _, err = c.Device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		b.Destroy()
		return nil, err
	}

	if _, err = c.Device.BindBufferMemory(handle, b.Memory, 0); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// CopyBuffer satisfies upload.Device. The copy runs on the transfer queue and
// has completed when CopyBuffer returns.
func (c *Context) CopyBuffer(src, dst upload.Buffer, size int) error {
	srcBuffer, ok := src.(*Buffer)
	if !ok {
		return errors.Newf("copy source is %T, not a device buffer", src)
	}
	dstBuffer, ok := dst.(*Buffer)
	if !ok {
		return errors.Newf("copy destination is %T, not a device buffer", dst)
	}

	return c.TransferOneShot(func(cb core1_0.CommandBuffer) error {
		return c.Device.CmdCopyBuffer(cb, srcBuffer.Handle, dstBuffer.Handle,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      size,
			},
		)
	})
}

func (c *Context) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	flags := make([]core1_0.MemoryPropertyFlags, 0, len(c.memoryProperties.MemoryTypes))
	for _, memoryType := range c.memoryProperties.MemoryTypes {
		flags = append(flags, memoryType.PropertyFlags)
	}
	return FindMemoryType(flags, typeFilter, properties)
}

// FindMemoryType returns the first memory type allowed by typeFilter that has
// every flag in properties.
func FindMemoryType(types []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, flags := range types {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (flags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoSuitableMemoryType, "filter %#x, properties %s", typeFilter, properties)
}
