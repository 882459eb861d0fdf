package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// DescriptorPoolSizes sizes a pool for one set per frame slot.
func DescriptorPoolSizes(slots int) []core1_0.DescriptorPoolSize {
	counts := map[core1_0.DescriptorType]int{}
	var order []core1_0.DescriptorType
	for _, binding := range DescriptorBindings() {
		if _, seen := counts[binding.DescriptorType]; !seen {
			order = append(order, binding.DescriptorType)
		}
		counts[binding.DescriptorType] += binding.DescriptorCount * slots
	}

	sizes := make([]core1_0.DescriptorPoolSize, 0, len(order))
	for _, t := range order {
		sizes = append(sizes, core1_0.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]})
	}
	return sizes
}

// SetResources is what one frame slot's descriptor set points at.
type SetResources struct {
	Camera         *Buffer
	Transforms     *Buffer
	TransformsSize int
	Texture        *Texture
}

type DescriptorSets struct {
	device core1_0.CoreDeviceDriver
	Pool   core1_0.DescriptorPool
	Sets   []core1_0.DescriptorSet
}

// CreateDescriptorSets allocates and writes one set per entry of resources.
func (c *Context) CreateDescriptorSets(layout core1_0.DescriptorSetLayout, resources []SetResources) (*DescriptorSets, error) {
	pool, _, err := c.Device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   len(resources),
		PoolSizes: DescriptorPoolSizes(len(resources)),
	})
	if err != nil {
		return nil, err
	}
	d := &DescriptorSets{device: c.Device, Pool: pool}

	allocLayouts := make([]core1_0.DescriptorSetLayout, len(resources))
	for i := range allocLayouts {
		allocLayouts[i] = layout
	}

	d.Sets, _, err = c.Device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		d.Destroy()
		return nil, err
	}

	for i, res := range resources {
		err = c.Device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          d.Sets[i],
				DstBinding:      BindingCamera,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: res.Camera.Handle,
						Offset: 0,
						Range:  res.Camera.Size(),
					},
				},
			},
			{
				DstSet:          d.Sets[i],
				DstBinding:      BindingTransforms,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeStorageBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: res.Transforms.Handle,
						Offset: 0,
						Range:  res.TransformsSize,
					},
				},
			},
			{
				DstSet:          d.Sets[i],
				DstBinding:      BindingTexture,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeSampledImage,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   res.Texture.View,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
			{
				DstSet:          d.Sets[i],
				DstBinding:      BindingSampler,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						Sampler: res.Texture.Sampler,
					},
				},
			},
		}, nil)
		if err != nil {
			d.Destroy()
			return nil, err
		}
	}

	return d, nil
}

// Destroy releases the pool, which frees its sets with it.
func (d *DescriptorSets) Destroy() {
	if d.Pool.Initialized() {
		d.device.DestroyDescriptorPool(d.Pool, nil)
		d.Pool = core1_0.DescriptorPool{}
	}
	d.Sets = nil
}
