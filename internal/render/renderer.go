package render

import (
	"bytes"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/fhengine/firehead/internal/assets"
	"github.com/fhengine/firehead/internal/config"
	"github.com/fhengine/firehead/internal/gpu"
	"github.com/fhengine/firehead/internal/scene"
	"github.com/fhengine/firehead/internal/upload"
)

// Window is what the renderer needs to wait out a minimized window.
type Window interface {
	FramebufferSize() (int, int)
	WaitEvents()
	ShouldClose() bool
}

// Renderer is the Vulkan Backend of the Scheduler. It owns every resource that
// is not device-level: geometry, textures, frame slots and everything tied to
// the swapchain.
type Renderer struct {
	ctx    *gpu.Context
	cfg    config.Config
	window Window

	scene   *scene.Scene
	camera  *scene.Camera
	elapsed float64

	// FirstInstanceOnly draws a single instance per model.
	FirstInstanceOnly bool

	vertexShader   []byte
	fragmentShader []byte

	uploader    *upload.Uploader
	cache       *gpu.PipelineCache
	depthFormat core1_0.Format

	vertexBuffer upload.Buffer
	indexBuffer  upload.Buffer
	transforms   *upload.Dynamic
	texture      *gpu.Texture
	slots        []*gpu.FrameSlot

	swapchain    *gpu.Swapchain
	renderPass   *gpu.RenderPass
	pipeline     *gpu.Pipeline
	descriptors  *gpu.DescriptorSets
	color        *gpu.Image
	depth        *gpu.Image
	framebuffers *gpu.Framebuffers
}

var _ Backend = (*Renderer)(nil)

// NewRenderer uploads the bundle and builds every swapchain-dependent
// resource. On error everything created so far is released.
func NewRenderer(ctx *gpu.Context, window Window, cfg config.Config, bundle *assets.Bundle, s *scene.Scene, camera *scene.Camera) (*Renderer, error) {
	r := &Renderer{
		ctx:               ctx,
		cfg:               cfg,
		window:            window,
		scene:             s,
		camera:            camera,
		FirstInstanceOnly: cfg.FirstInstanceOnly,
		vertexShader:      bundle.VertexShader,
		fragmentShader:    bundle.FragmentShader,
		uploader:          upload.NewUploader(ctx, cfg.DebugReadback),
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"load pipeline cache", r.loadPipelineCache},
		{"upload geometry", r.uploadGeometry},
		{"upload transforms", r.uploadTransforms},
		{"create texture", func() (err error) {
			tex := bundle.Texture
			r.texture, err = ctx.CreateTexture(tex.Pixels, tex.Width, tex.Height, tex.MipLevels)
			return err
		}},
		{"create frame slots", func() (err error) {
			r.slots, err = ctx.CreateFrameSlots(cfg.FramesInFlight, scene.CameraUniformSize)
			return err
		}},
		{"create swapchain resources", r.createSwapchainResources},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			r.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}
	return r, nil
}

func (r *Renderer) loadPipelineCache() error {
	if r.cfg.PipelineCachePath == "" {
		return nil
	}
	var err error
	r.cache, err = r.ctx.LoadPipelineCache(r.cfg.PipelineCachePath)
	return err
}

func (r *Renderer) uploadGeometry() error {
	vertices, indices := r.scene.Pack()
	vertexData := scene.Bytes(vertices)
	indexData := scene.Bytes(indices)

	var err error
	r.vertexBuffer, err = r.uploader.UploadStatic(vertexData, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return err
	}
	r.indexBuffer, err = r.uploader.UploadStatic(indexData, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return err
	}

	if r.cfg.DebugReadback {
		if err := r.verify("vertex", r.vertexBuffer, vertexData); err != nil {
			return err
		}
		if err := r.verify("index", r.indexBuffer, indexData); err != nil {
			return err
		}
	}
	return nil
}

// verify copies buf back to the host and compares it against what was uploaded.
func (r *Renderer) verify(name string, buf upload.Buffer, want []byte) error {
	got, err := r.uploader.ReadBack(buf, len(want))
	if err != nil {
		return errors.Wrapf(err, "read back %s buffer", name)
	}
	if !bytes.Equal(got, want) {
		return errors.Newf("%s buffer readback differs from upload", name)
	}
	log.Printf("verified %d bytes of %s data", len(want), name)
	return nil
}

func (r *Renderer) uploadTransforms() error {
	var err error
	r.transforms, err = r.uploader.NewDynamic(r.scene.TransformBytes(), core1_0.BufferUsageStorageBuffer, r.cfg.FramesInFlight)
	return err
}

func (r *Renderer) createSwapchainResources() error {
	var err error
	r.swapchain, err = r.ctx.CreateSwapchain()
	if err != nil {
		return err
	}

	// Every color attachment takes the swapchain format.
	if r.renderPass == nil || r.renderPass.Layout.Attachments[0].Format != r.swapchain.Format {
		if err := r.createPipeline(); err != nil {
			return err
		}
	}

	extent := r.swapchain.Extent
	if r.ctx.MSAASamples > core1_0.Samples1 {
		r.color, err = r.ctx.CreateColorAttachment(extent, r.swapchain.Format)
		if err != nil {
			return errors.Wrap(err, "create color attachment")
		}
	}
	if r.cfg.EnableDepth {
		r.depth, err = r.ctx.CreateDepthAttachment(extent, r.depthFormat)
		if err != nil {
			return errors.Wrap(err, "create depth attachment")
		}
	}

	r.framebuffers, err = r.ctx.CreateFramebuffers(r.renderPass, r.swapchain, r.color, r.depth)
	return err
}

// createPipeline (re)builds the render pass, the pipeline and the descriptor
// sets bound through the pipeline's set layout.
func (r *Renderer) createPipeline() error {
	r.destroyPipeline()

	if r.cfg.EnableDepth && r.depthFormat == core1_0.FormatUndefined {
		var err error
		r.depthFormat, err = r.ctx.FindDepthFormat()
		if err != nil {
			return err
		}
	}

	layout := gpu.DescribeRenderPass(gpu.RenderPassOptions{
		ColorFormat: r.swapchain.Format,
		DepthFormat: r.depthFormat,
		Samples:     r.ctx.MSAASamples,
		Depth:       r.cfg.EnableDepth,
	})

	var err error
	r.renderPass, err = r.ctx.CreateRenderPass(layout)
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}

	r.pipeline, err = r.ctx.BuildPipeline(gpu.PipelineOptions{
		VertexShader:   r.vertexShader,
		FragmentShader: r.fragmentShader,
		RenderPass:     r.renderPass,
		Samples:        r.ctx.MSAASamples,
		Depth:          r.cfg.EnableDepth,
		Cache:          r.cache,
	})
	if err != nil {
		return errors.Wrap(err, "build pipeline")
	}

	target := r.transforms.Target.(*gpu.Buffer)
	resources := make([]gpu.SetResources, len(r.slots))
	for i, slot := range r.slots {
		resources[i] = gpu.SetResources{
			Camera:         slot.Uniform,
			Transforms:     target,
			TransformsSize: r.transforms.Size(),
			Texture:        r.texture,
		}
	}
	r.descriptors, err = r.ctx.CreateDescriptorSets(r.pipeline.SetLayout, resources)
	return errors.Wrap(err, "create descriptor sets")
}

func (r *Renderer) destroyPipeline() {
	if r.descriptors != nil {
		r.descriptors.Destroy()
		r.descriptors = nil
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
	if r.renderPass != nil {
		r.renderPass.Destroy()
		r.renderPass = nil
	}
}

func (r *Renderer) destroySwapchainResources() {
	if r.framebuffers != nil {
		r.framebuffers.Destroy()
		r.framebuffers = nil
	}
	if r.color != nil {
		r.color.Destroy()
		r.color = nil
	}
	if r.depth != nil {
		r.depth.Destroy()
		r.depth = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
}

func (r *Renderer) WaitSlot(slot int) error {
	return r.slots[slot].Wait()
}

func (r *Renderer) Acquire(slot int) (int, Status, error) {
	image, res, err := r.swapchain.AcquireNextImage(r.slots[slot].ImageAvailable)
	status, err := acquireStatus(res, err)
	if err != nil || status == StatusOutOfDate {
		return 0, status, err
	}
	return image, status, nil
}

// acquireStatus maps an acquire result. A suboptimal image is still usable, an
// out-of-date swapchain yields none.
func acquireStatus(res common.VkResult, err error) (Status, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		return StatusOutOfDate, nil
	case err != nil:
		return StatusOK, errors.Wrap(err, "acquire swapchain image")
	case res == khr_swapchain.VKSuboptimal:
		return StatusSuboptimal, nil
	}
	return StatusOK, nil
}

func (r *Renderer) ResetSlot(slot int) error {
	return r.slots[slot].Reset()
}

// Record advances the animation, refreshes the slot's camera uniform and
// transform region, then re-records the slot's command buffer for image.
func (r *Renderer) Record(slot, image int, dt float64) error {
	frame := r.slots[slot]
	extent := r.swapchain.Extent

	r.elapsed += dt
	r.scene.Animate(r.elapsed)
	copy(frame.UniformMapped, scene.Bytes(r.camera.Uniform(extent.Width, extent.Height)))
	if err := r.transforms.Write(slot, r.scene.TransformBytes()); err != nil {
		return err
	}

	device := r.ctx.Device
	cb := frame.CommandBuffer
	if _, err := device.ResetCommandBuffer(cb, 0); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if _, err := device.BeginCommandBuffer(cb, core1_0.CommandBufferBeginInfo{}); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	if err := r.recordTransformCopy(cb, slot); err != nil {
		return err
	}

	err := device.CmdBeginRenderPass(cb, core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  r.renderPass.Handle,
		Framebuffer: r.framebuffers.Handles[image],
		RenderArea: core1_0.Rect2D{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValues: r.renderPass.Layout.ClearValues,
	})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	device.CmdBindPipeline(cb, core1_0.PipelineBindPointGraphics, r.pipeline.Handle)
	device.CmdSetViewport(cb, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	device.CmdSetScissor(cb, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})
	device.CmdBindVertexBuffers(cb, 0, []core1_0.Buffer{r.vertexBuffer.(*gpu.Buffer).Handle}, []int{0})
	device.CmdBindIndexBuffer(cb, r.indexBuffer.(*gpu.Buffer).Handle, 0, core1_0.IndexTypeUInt32)
	device.CmdBindDescriptorSets(cb, core1_0.PipelineBindPointGraphics, r.pipeline.Layout, 0, []core1_0.DescriptorSet{
		r.descriptors.Sets[slot],
	}, nil)

	for _, call := range DrawCalls(r.scene.Models, r.cfg.Instancing, r.FirstInstanceOnly) {
		device.CmdDrawIndexed(cb, call.IndexCount, call.InstanceCount, call.FirstIndex, call.VertexOffset, call.FirstInstance)
	}

	device.CmdEndRenderPass(cb)
	if _, err := device.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

// recordTransformCopy copies the slot's staging region into the device-local
// transform buffer. The first barrier keeps the copy behind earlier frames'
// vertex shader reads, the second makes it visible to this frame's.
func (r *Renderer) recordTransformCopy(cb core1_0.CommandBuffer, slot int) error {
	device := r.ctx.Device
	target := r.transforms.Target.(*gpu.Buffer)
	staging := r.transforms.Staging.(*gpu.Buffer)
	size := r.transforms.Size()

	barrier := func(src, dst core1_0.AccessFlags, srcStage, dstStage core1_0.PipelineStageFlags) error {
		return device.CmdPipelineBarrier(cb, srcStage, dstStage, 0, nil, []core1_0.BufferMemoryBarrier{
			{
				SrcAccessMask:       src,
				DstAccessMask:       dst,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Buffer:              target.Handle,
				Offset:              0,
				Size:                size,
			},
		}, nil)
	}

	err := barrier(core1_0.AccessShaderRead, core1_0.AccessTransferWrite,
		core1_0.PipelineStageVertexShader, core1_0.PipelineStageTransfer)
	if err != nil {
		return errors.Wrap(err, "transform barrier")
	}

	err = device.CmdCopyBuffer(cb, staging.Handle, target.Handle, core1_0.BufferCopy{
		SrcOffset: r.transforms.Region(slot),
		DstOffset: 0,
		Size:      size,
	})
	if err != nil {
		return errors.Wrap(err, "copy transforms")
	}

	err = barrier(core1_0.AccessTransferWrite, core1_0.AccessShaderRead,
		core1_0.PipelineStageTransfer, core1_0.PipelineStageVertexShader)
	return errors.Wrap(err, "transform barrier")
}

func (r *Renderer) Submit(slot, image int) error {
	frame := r.slots[slot]
	_, err := r.ctx.Device.QueueSubmit(r.ctx.GraphicsQueue, &frame.InFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{frame.ImageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{frame.CommandBuffer},
			SignalSemaphores: []core1_0.Semaphore{frame.RenderFinished},
		},
	)
	return errors.Wrap(err, "submit draw command buffer")
}

func (r *Renderer) Present(slot, image int) (Status, error) {
	res, err := r.swapchain.Present(r.ctx.PresentQueue, r.slots[slot].RenderFinished, image)
	return presentStatus(res, err)
}

func presentStatus(res common.VkResult, err error) (Status, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		return StatusOutOfDate, nil
	case res == khr_swapchain.VKSuboptimal:
		return StatusSuboptimal, nil
	case err != nil:
		return StatusOK, errors.Wrap(err, "present")
	}
	return StatusOK, nil
}

// Rebuild recreates the swapchain and everything sized by it. It returns false
// without touching anything if the window closed while minimized.
func (r *Renderer) Rebuild() (bool, error) {
	if !waitForDrawable(r.window) {
		return false, nil
	}

	start := hrtime.Now()
	if err := r.ctx.WaitIdle(); err != nil {
		return false, err
	}

	oldFormat := r.swapchain.Format
	r.destroySwapchainResources()
	if err := r.createSwapchainResources(); err != nil {
		return false, errors.Wrap(err, "recreate swapchain")
	}

	log.Printf("swapchain rebuilt at %dx%d (format changed: %t) in %s",
		r.swapchain.Extent.Width, r.swapchain.Extent.Height, oldFormat != r.swapchain.Format, hrtime.Since(start))
	return true, nil
}

// waitForDrawable blocks on window events while the framebuffer has no area.
// It reports false if the window was closed instead.
func waitForDrawable(w Window) bool {
	for {
		if w.ShouldClose() {
			return false
		}
		if width, height := w.FramebufferSize(); width > 0 && height > 0 {
			return true
		}
		w.WaitEvents()
	}
}

// Close waits for the device, persists the pipeline cache and releases every
// resource the renderer owns in reverse creation order.
func (r *Renderer) Close() {
	if err := r.ctx.WaitIdle(); err != nil {
		log.Printf("wait idle before teardown: %v", err)
	}

	r.destroySwapchainResources()
	r.destroyPipeline()

	for _, slot := range r.slots {
		slot.Destroy()
	}
	r.slots = nil

	if r.texture != nil {
		r.texture.Destroy()
		r.texture = nil
	}
	if r.transforms != nil {
		r.transforms.Destroy()
		r.transforms = nil
	}
	if r.indexBuffer != nil {
		r.indexBuffer.Destroy()
		r.indexBuffer = nil
	}
	if r.vertexBuffer != nil {
		r.vertexBuffer.Destroy()
		r.vertexBuffer = nil
	}

	if r.cache != nil {
		if err := r.cache.Save(); err != nil {
			log.Printf("save pipeline cache: %v", err)
		}
		r.cache.Destroy()
		r.cache = nil
	}
}
