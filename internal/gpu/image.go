package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/fhengine/firehead/internal/upload"
)

// Image is a 2D image with its memory and a view covering every mip level.
type Image struct {
	device core1_0.CoreDeviceDriver

	Handle    core1_0.Image
	Memory    core1_0.DeviceMemory
	View      core1_0.ImageView
	Format    core1_0.Format
	Width     int
	Height    int
	MipLevels int
}

type ImageSpec struct {
	Width, Height int
	MipLevels     int
	Samples       core1_0.SampleCountFlags
	Format        core1_0.Format
	Usage         core1_0.ImageUsageFlags
	Aspect        core1_0.ImageAspectFlags
}

func (c *Context) CreateImage(spec ImageSpec) (*Image, error) {
	handle, _, err := c.Device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   1,
		Format:        spec.Format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         spec.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       spec.Samples,
	})
	if err != nil {
		return nil, err
	}

	img := &Image{
		device:    c.Device,
		Handle:    handle,
		Format:    spec.Format,
		Width:     spec.Width,
		Height:    spec.Height,
		MipLevels: spec.MipLevels,
	}

	memReqs := c.Device.GetImageMemoryRequirements(handle)
	memoryIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		img.Destroy()
		return nil, err
	}

	img.Memory, _, err = c.Device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}

	if _, err = c.Device.BindImageMemory(handle, img.Memory, 0); err != nil {
		img.Destroy()
		return nil, err
	}

	img.View, err = c.createImageView(handle, spec.Format, spec.Aspect, spec.MipLevels)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (c *Context) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels int) (core1_0.ImageView, error) {
	imageView, _, err := c.Device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, err
}

func (i *Image) Destroy() {
	if i.View.Initialized() {
		i.device.DestroyImageView(i.View, nil)
		i.View = core1_0.ImageView{}
	}
	if i.Handle.Initialized() {
		i.device.DestroyImage(i.Handle, nil)
		i.Handle = core1_0.Image{}
	}
	if i.Memory.Initialized() {
		i.device.FreeMemory(i.Memory, nil)
		i.Memory = core1_0.DeviceMemory{}
	}
}

// Transition is the access and stage masks of one layout change.
type Transition struct {
	SrcAccess core1_0.AccessFlags
	DstAccess core1_0.AccessFlags
	SrcStage  core1_0.PipelineStageFlags
	DstStage  core1_0.PipelineStageFlags
}

type layoutPair struct {
	from, to core1_0.ImageLayout
}

var transitions = map[layoutPair]Transition{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: core1_0.AccessTransferWrite,
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: core1_0.AccessTransferWrite,
		DstAccess: core1_0.AccessShaderRead,
		SrcStage:  core1_0.PipelineStageTransfer,
		DstStage:  core1_0.PipelineStageFragmentShader,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal}: {
		SrcAccess: 0,
		DstAccess: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageEarlyFragmentTests,
	},
}

// TransitionFor looks up the masks for a layout change. Pairs the renderer
// never performs are an error.
func TransitionFor(from, to core1_0.ImageLayout) (Transition, error) {
	t, ok := transitions[layoutPair{from, to}]
	if !ok {
		return Transition{}, errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", from, to)
	}
	return t, nil
}

// AspectFor is the subresource aspect touched when transitioning to layout.
func AspectFor(format core1_0.Format, layout core1_0.ImageLayout) core1_0.ImageAspectFlags {
	if layout != core1_0.ImageLayoutDepthStencilAttachmentOptimal {
		return core1_0.ImageAspectColor
	}
	if hasStencilComponent(format) {
		return core1_0.ImageAspectDepth | core1_0.ImageAspectStencil
	}
	return core1_0.ImageAspectDepth
}

// TransitionLayout changes the layout of every mip level on a one-shot
// command buffer.
func (c *Context) TransitionLayout(img *Image, from, to core1_0.ImageLayout) error {
	t, err := TransitionFor(from, to)
	if err != nil {
		return err
	}

	return c.OneShot(func(cb core1_0.CommandBuffer) error {
		return c.Device.CmdPipelineBarrier(cb, t.SrcStage, t.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
			{
				OldLayout:           from,
				NewLayout:           to,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               img.Handle,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     AspectFor(img.Format, to),
					BaseMipLevel:   0,
					LevelCount:     img.MipLevels,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcAccessMask: t.SrcAccess,
				DstAccessMask: t.DstAccess,
			},
		})
	})
}

// CreateColorAttachment is the multisampled color target resolved into the
// swapchain image.
func (c *Context) CreateColorAttachment(extent core1_0.Extent2D, format core1_0.Format) (*Image, error) {
	return c.CreateImage(ImageSpec{
		Width:     extent.Width,
		Height:    extent.Height,
		MipLevels: 1,
		Samples:   c.MSAASamples,
		Format:    format,
		Usage:     core1_0.ImageUsageTransientAttachment | core1_0.ImageUsageColorAttachment,
		Aspect:    core1_0.ImageAspectColor,
	})
}

// CreateDepthAttachment creates a depth image already in the attachment layout.
func (c *Context) CreateDepthAttachment(extent core1_0.Extent2D, format core1_0.Format) (*Image, error) {
	img, err := c.CreateImage(ImageSpec{
		Width:     extent.Width,
		Height:    extent.Height,
		MipLevels: 1,
		Samples:   c.MSAASamples,
		Format:    format,
		Usage:     core1_0.ImageUsageDepthStencilAttachment,
		Aspect:    core1_0.ImageAspectDepth,
	})
	if err != nil {
		return nil, err
	}

	if err := c.TransitionLayout(img, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// Texture is a sampled image with its full mip chain.
type Texture struct {
	*Image
	Sampler core1_0.Sampler
}

// CreateTexture uploads tightly packed RGBA8 pixels and generates the mip chain
// with linear blits.
func (c *Context) CreateTexture(pixels []byte, width, height, mipLevels int) (*Texture, error) {
	if !c.FormatSupported(textureFormat, core1_0.ImageTilingOptimal, core1_0.FormatFeatureSampledImageFilterLinear) {
		return nil, errors.Newf("texture image format %s does not support linear blitting", textureFormat)
	}

	staging, err := upload.NewUploader(c, false).Stage(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := c.CreateImage(ImageSpec{
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		Samples:   core1_0.Samples1,
		Format:    textureFormat,
		Usage:     core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		Aspect:    core1_0.ImageAspectColor,
	})
	if err != nil {
		return nil, err
	}
	tex := &Texture{Image: img}

	if err := c.TransitionLayout(img, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal); err != nil {
		tex.Destroy()
		return nil, err
	}

	err = c.OneShot(func(cb core1_0.CommandBuffer) error {
		if err := c.Device.CmdCopyBufferToImage(cb, staging.(*Buffer).Handle, img.Handle, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		); err != nil {
			return err
		}
		return c.recordMipmaps(cb, img)
	})
	if err != nil {
		tex.Destroy()
		return nil, err
	}

	tex.Sampler, _, err = c.Device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    c.Properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     float32(mipLevels),
	})
	if err != nil {
		tex.Destroy()
		return nil, err
	}
	return tex, nil
}

// recordMipmaps blits each level from the one above it and leaves every level
// in the shader read layout.
func (c *Context) recordMipmaps(cb core1_0.CommandBuffer, img *Image) error {
	barrier := core1_0.ImageMemoryBarrier{
		Image:               img.Handle,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseArrayLayer: 0,
			LayerCount:     1,
			LevelCount:     1,
		},
	}

	mipWidth, mipHeight := img.Width, img.Height
	for i := 1; i < img.MipLevels; i++ {
		barrier.SubresourceRange.BaseMipLevel = i - 1
		barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
		barrier.NewLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.DstAccessMask = core1_0.AccessTransferRead

		err := c.Device.CmdPipelineBarrier(cb, core1_0.PipelineStageTransfer, core1_0.PipelineStageTransfer, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		nextMipWidth := max(mipWidth/2, 1)
		nextMipHeight := max(mipHeight/2, 1)

		err = c.Device.CmdBlitImage(cb, img.Handle, core1_0.ImageLayoutTransferSrcOptimal, img.Handle, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextMipWidth, Y: nextMipHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		barrier.OldLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferRead
		barrier.DstAccessMask = core1_0.AccessShaderRead
		err = c.Device.CmdPipelineBarrier(cb, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		mipWidth, mipHeight = nextMipWidth, nextMipHeight
	}

	last, err := TransitionFor(core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return err
	}
	barrier.SubresourceRange.BaseMipLevel = img.MipLevels - 1
	barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
	barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = last.SrcAccess
	barrier.DstAccessMask = last.DstAccess

	return c.Device.CmdPipelineBarrier(cb, last.SrcStage, last.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
}

func (t *Texture) Destroy() {
	if t.Sampler.Initialized() {
		t.device.DestroySampler(t.Sampler, nil)
		t.Sampler = core1_0.Sampler{}
	}
	t.Image.Destroy()
}
