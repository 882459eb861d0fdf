package gpu

import (
	"encoding/binary"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/fhengine/firehead/internal/scene"
)

// Descriptor bindings of the single set used by the pipeline.
const (
	BindingCamera     = 0
	BindingTransforms = 1
	BindingTexture    = 2
	BindingSampler    = 3
)

// minSampleShading is the fraction of samples shaded per fragment when
// sample-rate shading is on.
const minSampleShading = 0.2

func DescriptorBindings() []core1_0.DescriptorSetLayoutBinding {
	return []core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         BindingCamera,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,

			StageFlags: core1_0.StageVertex,
		},
		{
			Binding:         BindingTransforms,
			DescriptorType:  core1_0.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,

			StageFlags: core1_0.StageVertex,
		},
		{
			Binding:         BindingTexture,
			DescriptorType:  core1_0.DescriptorTypeSampledImage,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
		{
			Binding:         BindingSampler,
			DescriptorType:  core1_0.DescriptorTypeSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
	}
}

func VertexBindings() []core1_0.VertexInputBindingDescription {
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    scene.VertexStride(),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func VertexAttributes() []core1_0.VertexInputAttributeDescription {
	var descriptions []core1_0.VertexInputAttributeDescription
	for _, attr := range scene.VertexAttributes() {
		format := core1_0.FormatR32G32B32SignedFloat
		if attr.Components == 2 {
			format = core1_0.FormatR32G32SignedFloat
		}
		descriptions = append(descriptions, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: attr.Location,
			Format:   format,
			Offset:   attr.Offset,
		})
	}
	return descriptions
}

// bytesToBytecode reads SPIR-V words in little-endian order.
func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return byteCode
}

type PipelineOptions struct {
	VertexShader   []byte
	FragmentShader []byte
	RenderPass     *RenderPass
	Samples        core1_0.SampleCountFlags
	Depth          bool
	Cache          *PipelineCache
}

// Pipeline bundles the graphics pipeline with its layouts.
type Pipeline struct {
	device    core1_0.CoreDeviceDriver
	SetLayout core1_0.DescriptorSetLayout
	Layout    core1_0.PipelineLayout
	Handle    core1_0.Pipeline
}

func (c *Context) createShaderModule(code []byte) (core1_0.ShaderModule, error) {
	module, _, err := c.Device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(code),
	})
	return module, err
}

// BuildPipeline creates the descriptor set layout, the pipeline layout and the
// graphics pipeline. Viewport and scissor are dynamic so the pipeline survives
// swapchain rebuilds.
func (c *Context) BuildPipeline(opts PipelineOptions) (*Pipeline, error) {
	p := &Pipeline{device: c.Device}

	var err error
	p.SetLayout, _, err = c.Device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: DescriptorBindings(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}

	p.Layout, _, err = c.Device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			p.SetLayout,
		},
	})
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	vertShader, err := c.createShaderModule(opts.VertexShader)
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create vertex shader module")
	}
	defer c.Device.DestroyShaderModule(vertShader, nil)

	fragShader, err := c.createShaderModule(opts.FragmentShader)
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create fragment shader module")
	}
	defer c.Device.DestroyShaderModule(fragShader, nil)

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: opts.Samples,
		MinSampleShading:     1.0,
	}
	if opts.Samples > core1_0.Samples1 {
		multisample.SampleShadingEnable = true
		multisample.MinSampleShading = minSampleShading
	}

	var depthStencil *core1_0.PipelineDepthStencilStateCreateInfo
	if opts.Depth {
		depthStencil = &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:   true,
			DepthWriteEnable:  true,
			DepthCompareOp:    core1_0.CompareOpLess,
			StencilTestEnable: false,
		}
	}

	info := core1_0.GraphicsPipelineCreateInfo{
		Stages: []core1_0.PipelineShaderStageCreateInfo{
			{
				Stage:  core1_0.StageVertex,
				Module: vertShader,
				Name:   "main",
			},
			{
				Stage:  core1_0.StageFragment,
				Module: fragShader,
				Name:   "main",
			},
		},
		VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
			VertexBindingDescriptions:   VertexBindings(),
			VertexAttributeDescriptions: VertexAttributes(),
		},
		InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology:               core1_0.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: false,
		},
		// Counts only; the values come from CmdSetViewport and CmdSetScissor.
		ViewportState: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{{}},
			Scissors:  []core1_0.Rect2D{{}},
		},
		RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
			DepthClampEnable:        false,
			RasterizerDiscardEnable: false,

			PolygonMode: core1_0.PolygonModeFill,
			CullMode:    core1_0.CullModeBack,
			FrontFace:   core1_0.FrontFaceCounterClockwise,

			DepthBiasEnable: false,

			LineWidth: 1.0,
		},
		MultisampleState:  multisample,
		DepthStencilState: depthStencil,
		ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOpEnabled: false,
			LogicOp:        core1_0.LogicOpCopy,

			BlendConstants: [4]float32{0, 0, 0, 0},
			Attachments: []core1_0.PipelineColorBlendAttachmentState{
				{
					BlendEnabled:        true,
					SrcColorBlendFactor: core1_0.BlendFactorSrcAlpha,
					DstColorBlendFactor: core1_0.BlendFactorOneMinusSrcAlpha,
					ColorBlendOp:        core1_0.BlendOpAdd,
					SrcAlphaBlendFactor: core1_0.BlendFactorOne,
					DstAlphaBlendFactor: core1_0.BlendFactorZero,
					AlphaBlendOp:        core1_0.BlendOpAdd,
					ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
				},
			},
		},
		DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
		},
		Layout:            p.Layout,
		RenderPass:        opts.RenderPass.Handle,
		Subpass:           0,
		BasePipelineIndex: -1,
	}

	var cache *core1_0.PipelineCache
	if opts.Cache != nil {
		cache = &opts.Cache.Handle
	}

	start := hrtime.Now()
	pipelines, _, err := c.Device.CreateGraphicsPipelines(cache, nil, info)
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create graphics pipeline")
	}
	log.Printf("graphics pipeline created in %v (cache: %t)", hrtime.Since(start), cache != nil)

	p.Handle = pipelines[0]
	return p, nil
}

func (p *Pipeline) Destroy() {
	if p.Handle.Initialized() {
		p.device.DestroyPipeline(p.Handle, nil)
		p.Handle = core1_0.Pipeline{}
	}
	if p.Layout.Initialized() {
		p.device.DestroyPipelineLayout(p.Layout, nil)
		p.Layout = core1_0.PipelineLayout{}
	}
	if p.SetLayout.Initialized() {
		p.device.DestroyDescriptorSetLayout(p.SetLayout, nil)
		p.SetLayout = core1_0.DescriptorSetLayout{}
	}
}
