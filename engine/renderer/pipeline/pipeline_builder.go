package pipeline

import (
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption configures a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex stage of a render pipeline.
//
// Parameters:
//   - s: a reflected shader of type shader.ShaderTypeVertex
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment stage of a render pipeline.
//
// Parameters:
//   - s: a reflected shader of type shader.ShaderTypeFragment, usually built from the same source
//     as the vertex stage
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the stage of a compute pipeline.
//
// Parameters:
//   - s: a reflected shader of type shader.ShaderTypeCompute
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithVariant sets which bindings the render pipeline requires and whether draws are instanced.
//
// Parameters:
//   - v: the variant, e.g. VariantState
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithVariant(v Variant) PipelineBuilderOption {
	return func(p *pipeline) {
		p.variant = v
	}
}

// WithPrimitive replaces the primitive state. The default is an unculled counter-clockwise
// triangle list, which is what the cell quad is built as.
//
// Parameters:
//   - primitive: topology, winding and culling
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithPrimitive(primitive wgpu.PrimitiveState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.primitive = primitive
	}
}

// WithBlend sets the colour target blend state. Nil, the default, disables blending.
//
// Parameters:
//   - blend: the blend state, or nil; see AlphaBlending
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithBlend(blend *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blend = blend
	}
}

// WithWriteMask restricts which colour channels the pipeline writes. The default is
// wgpu.ColorWriteMaskAll.
//
// Parameters:
//   - mask: the channels to write
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithWriteMask(mask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = mask
	}
}
