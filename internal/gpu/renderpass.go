package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// AttachmentRole says which image backs a render pass attachment.
type AttachmentRole int

const (
	// RoleSwapchain is the presentable image, either rendered to directly or
	// resolved into.
	RoleSwapchain AttachmentRole = iota
	RoleMSAAColor
	RoleDepth
)

type RenderPassOptions struct {
	ColorFormat core1_0.Format
	DepthFormat core1_0.Format
	Samples     core1_0.SampleCountFlags
	Depth       bool
}

func (o RenderPassOptions) multisampled() bool {
	return o.Samples > core1_0.Samples1
}

// RenderPassLayout is a device-independent description of the single-subpass
// render pass. Roles and ClearValues are indexed like Attachments.
type RenderPassLayout struct {
	Attachments []core1_0.AttachmentDescription
	Roles       []AttachmentRole
	ClearValues []core1_0.ClearValue
	Subpass     core1_0.SubpassDescription
	Dependency  core1_0.SubpassDependency
}

// DescribeRenderPass lays out the color target, an optional depth target and,
// when multisampled, the resolve target.
func DescribeRenderPass(opts RenderPassOptions) RenderPassLayout {
	var layout RenderPassLayout
	add := func(role AttachmentRole, desc core1_0.AttachmentDescription, clear core1_0.ClearValue) int {
		layout.Attachments = append(layout.Attachments, desc)
		layout.Roles = append(layout.Roles, role)
		layout.ClearValues = append(layout.ClearValues, clear)
		return len(layout.Attachments) - 1
	}

	colorRole := RoleSwapchain
	colorFinal := khr_swapchain.ImageLayoutPresentSrc
	if opts.multisampled() {
		colorRole = RoleMSAAColor
		colorFinal = core1_0.ImageLayoutColorAttachmentOptimal
	}

	color := add(colorRole, core1_0.AttachmentDescription{
		Format:         opts.ColorFormat,
		Samples:        opts.Samples,
		LoadOp:         core1_0.AttachmentLoadOpClear,
		StoreOp:        core1_0.AttachmentStoreOpStore,
		StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
		StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
		InitialLayout:  core1_0.ImageLayoutUndefined,
		FinalLayout:    colorFinal,
	}, core1_0.ClearValueFloat{0.02, 0.02, 0.04, 1})

	layout.Subpass = core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: color,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
	}

	stages := core1_0.PipelineStageColorAttachmentOutput
	access := core1_0.AccessColorAttachmentWrite

	if opts.Depth {
		depth := add(RoleDepth, core1_0.AttachmentDescription{
			Format:         opts.DepthFormat,
			Samples:        opts.Samples,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}, core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0})

		layout.Subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: depth,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= core1_0.PipelineStageEarlyFragmentTests
		access |= core1_0.AccessDepthStencilAttachmentWrite
	}

	if opts.multisampled() {
		resolve := add(RoleSwapchain, core1_0.AttachmentDescription{
			Format:         opts.ColorFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpDontCare,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		}, core1_0.ClearValueFloat{0, 0, 0, 1})

		layout.Subpass.ResolveAttachments = []core1_0.AttachmentReference{
			{
				Attachment: resolve,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		}
	}

	layout.Dependency = core1_0.SubpassDependency{
		SrcSubpass: core1_0.SubpassExternal,
		DstSubpass: 0,

		SrcStageMask:  stages,
		SrcAccessMask: 0,

		DstStageMask:  stages,
		DstAccessMask: access,
	}
	return layout
}

type RenderPass struct {
	device core1_0.CoreDeviceDriver
	Handle core1_0.RenderPass
	Layout RenderPassLayout
}

func (c *Context) CreateRenderPass(layout RenderPassLayout) (*RenderPass, error) {
	handle, _, err := c.Device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments:         layout.Attachments,
		Subpasses:           []core1_0.SubpassDescription{layout.Subpass},
		SubpassDependencies: []core1_0.SubpassDependency{layout.Dependency},
	})
	if err != nil {
		return nil, err
	}
	return &RenderPass{device: c.Device, Handle: handle, Layout: layout}, nil
}

func (r *RenderPass) Destroy() {
	if r.Handle.Initialized() {
		r.device.DestroyRenderPass(r.Handle, nil)
		r.Handle = core1_0.RenderPass{}
	}
}

// FramebufferViews orders the views backing one framebuffer by attachment role.
func (l RenderPassLayout) FramebufferViews(swapchainView, colorView, depthView core1_0.ImageView) []core1_0.ImageView {
	views := make([]core1_0.ImageView, 0, len(l.Roles))
	for _, role := range l.Roles {
		switch role {
		case RoleSwapchain:
			views = append(views, swapchainView)
		case RoleMSAAColor:
			views = append(views, colorView)
		case RoleDepth:
			views = append(views, depthView)
		}
	}
	return views
}

// Framebuffers holds one framebuffer per swapchain image.
type Framebuffers struct {
	device  core1_0.CoreDeviceDriver
	Handles []core1_0.Framebuffer
}

// CreateFramebuffers pairs each swapchain view with the shared color and depth
// attachments. Either attachment may be nil when the layout does not use it.
func (c *Context) CreateFramebuffers(rp *RenderPass, swapchain *Swapchain, color, depth *Image) (*Framebuffers, error) {
	var colorView, depthView core1_0.ImageView
	if color != nil {
		colorView = color.View
	}
	if depth != nil {
		depthView = depth.View
	}

	fbs := &Framebuffers{device: c.Device}
	for _, imageView := range swapchain.Views {
		framebuffer, _, err := c.Device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  rp.Handle,
			Layers:      1,
			Attachments: rp.Layout.FramebufferViews(imageView, colorView, depthView),
			Width:       swapchain.Extent.Width,
			Height:      swapchain.Extent.Height,
		})
		if err != nil {
			fbs.Destroy()
			return nil, err
		}

		fbs.Handles = append(fbs.Handles, framebuffer)
	}
	return fbs, nil
}

func (f *Framebuffers) Destroy() {
	for _, fb := range f.Handles {
		f.device.DestroyFramebuffer(fb, nil)
	}
	f.Handles = nil
}
