package pipeline

import (
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType distinguishes the cell render pipeline from the simulation compute pipeline.
type PipelineType int

const (
	PipelineTypeCompute PipelineType = iota
	PipelineTypeRender
)

// AlphaBlending is standard source-over blending, for fragment shaders that fade cells.
var AlphaBlending = &wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string
	variant      Variant

	vertexShader, fragmentShader, computeShader shader.Shader

	// Render state; ignored by compute pipelines.
	primitive wgpu.PrimitiveState
	blend     *wgpu.BlendState
	writeMask wgpu.ColorWriteMask

	renderPipeline  device.RenderPipeline
	computePipeline device.ComputePipeline
}

// Pipeline describes a GPU pipeline, either a render pipeline (vertex + fragment shaders)
// parameterized by a Variant or a compute pipeline (compute shader). It holds the configuration
// used at creation time and, once registered, the compiled device pipeline.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Variant returns the render variant. Compute pipelines report the zero Variant.
	//
	// Returns:
	//   - Variant: the configured variant
	Variant() Variant

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Validate checks that the shaders required by the pipeline type are present and that they
	// declare every binding the variant needs.
	//
	// Returns:
	//   - error: a *common.ShaderCompileError naming the offending stage for a missing stage or a
	//     wrong buffer type; common.ErrLayoutMismatch when the declared bindings differ from the
	//     variant's
	Validate() error

	// BindGroupLayouts merges the bind group layouts declared by all shaders of the pipeline into
	// one descriptor per group, ordered by group index. Entries declared by several stages get
	// their visibility flags combined.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutDescriptor: the merged layouts, empty if no shader declares a binding
	BindGroupLayouts() []wgpu.BindGroupLayoutDescriptor

	// RenderPipeline returns the compiled render pipeline, or nil before registration.
	//
	// Returns:
	//   - device.RenderPipeline: the compiled pipeline
	RenderPipeline() device.RenderPipeline

	// ComputePipeline returns the compiled compute pipeline, or nil before registration.
	//
	// Returns:
	//   - device.ComputePipeline: the compiled pipeline
	ComputePipeline() device.ComputePipeline

	// Primitive returns the topology, winding and culling used to assemble the geometry.
	//
	// Returns:
	//   - wgpu.PrimitiveState: the primitive state
	Primitive() wgpu.PrimitiveState

	// Blend returns the colour target blend state.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state, or nil when blending is off
	Blend() *wgpu.BlendState

	// WriteMask returns the colour channels the pipeline writes.
	WriteMask() wgpu.ColorWriteMask

	// SetRenderPipeline stores the compiled render pipeline.
	//
	// Parameters:
	//   - p: the compiled render pipeline
	SetRenderPipeline(p device.RenderPipeline)

	// SetComputePipeline stores the compiled compute pipeline.
	//
	// Parameters:
	//   - p: the compiled compute pipeline
	SetComputePipeline(p device.ComputePipeline)

	// Release releases the compiled pipeline, if any.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline describes a pipeline. Render pipelines default to VariantState, an unculled
// triangle list and no blending. Nothing is compiled until the pipeline is registered with a device.
//
// Parameters:
//   - pipelineKey: the key used for labels and Renderer.Pipeline lookups
//   - pipelineType: render or compute
//   - opts: shaders, variant and render state
//
// Returns:
//   - Pipeline: the unregistered pipeline
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		writeMask: wgpu.ColorWriteMaskAll,
	}
	if pipelineType == PipelineTypeRender {
		p.variant = VariantState
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Variant() Variant {
	return p.variant
}

func (p *pipeline) RenderPipeline() device.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) ComputePipeline() device.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) Primitive() wgpu.PrimitiveState {
	return p.primitive
}

func (p *pipeline) Blend() *wgpu.BlendState {
	return p.blend
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) SetRenderPipeline(rp device.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp device.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}

// shaders returns the non-nil shaders of the pipeline in stage order.
func (p *pipeline) shaders() []shader.Shader {
	var out []shader.Shader
	for _, s := range []shader.Shader{p.vertexShader, p.fragmentShader, p.computeShader} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
