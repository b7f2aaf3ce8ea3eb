package renderer

import (
	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// registerRenderPipeline validates a render pipeline against the geometry it will draw, compiles
// its shader modules and creates the device pipeline with one colour target in format. Identical
// vertex and fragment sources share one module. Modules are released once the pipeline exists.
//
// Parameters:
//   - dev: the device to compile on
//   - p: the render pipeline description, populated with the compiled pipeline on success
//   - vertexLayout: the layout of the geometry bound at slot 0
//   - format: the colour target format
//
// Returns:
//   - error: a *common.ShaderCompileError naming the stage that failed
func registerRenderPipeline(dev device.Device, p pipeline.Pipeline, vertexLayout wgpu.VertexBufferLayout, format wgpu.TextureFormat) error {
	if err := p.Validate(); err != nil {
		return err
	}
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	if err := checkVertexInputs(vertexShader, vertexLayout); err != nil {
		return err
	}

	vs, err := dev.CreateShaderModule(vertexShader.Label(), vertexShader.Source())
	if err != nil {
		return common.NewShaderCompileError(common.ShaderStageVertex, err, "%s", vertexShader.Key())
	}
	defer vs.Release()

	fs := vs
	if fragmentShader.Source() != vertexShader.Source() {
		fs, err = dev.CreateShaderModule(fragmentShader.Label(), fragmentShader.Source())
		if err != nil {
			return common.NewShaderCompileError(common.ShaderStageFragment, err, "%s", fragmentShader.Key())
		}
		defer fs.Release()
	}

	created, err := dev.CreateRenderPipeline(device.RenderPipelineDescriptor{
		Label:              p.PipelineKey(),
		VertexModule:       vs,
		VertexEntryPoint:   vertexShader.EntryPoint(),
		VertexBuffers:      []wgpu.VertexBufferLayout{vertexLayout},
		FragmentModule:     fs,
		FragmentEntryPoint: fragmentShader.EntryPoint(),
		Format:             format,
		Blend:              p.Blend(),
		WriteMask:          p.WriteMask(),
		Primitive:          p.Primitive(),
		BindGroupLayouts:   p.BindGroupLayouts(),
	})
	if err != nil {
		return common.NewShaderCompileError(common.ShaderStageVertex, err, "%s: pipeline creation failed", p.PipelineKey())
	}

	p.SetRenderPipeline(created)
	return nil
}

// registerComputePipeline compiles the compute shader of p and creates the device pipeline.
//
// Parameters:
//   - dev: the device to compile on
//   - p: the compute pipeline description, populated with the compiled pipeline on success
//
// Returns:
//   - error: a *common.ShaderCompileError for the compute stage
func registerComputePipeline(dev device.Device, p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	computeShader := p.Shader(shader.ShaderTypeCompute)

	module, err := dev.CreateShaderModule(computeShader.Label(), computeShader.Source())
	if err != nil {
		return common.NewShaderCompileError(common.ShaderStageCompute, err, "%s", computeShader.Key())
	}
	defer module.Release()

	created, err := dev.CreateComputePipeline(device.ComputePipelineDescriptor{
		Label:            p.PipelineKey(),
		Module:           module,
		EntryPoint:       computeShader.EntryPoint(),
		BindGroupLayouts: p.BindGroupLayouts(),
	})
	if err != nil {
		return common.NewShaderCompileError(common.ShaderStageCompute, err, "%s: pipeline creation failed", p.PipelineKey())
	}

	p.SetComputePipeline(created)
	return nil
}

// checkVertexInputs verifies that every vertex input the shader consumes is supplied by the
// geometry layout at the same location with the same format.
func checkVertexInputs(s shader.Shader, layout wgpu.VertexBufferLayout) error {
	supplied := make(map[uint32]wgpu.VertexFormat, len(layout.Attributes))
	for _, a := range layout.Attributes {
		supplied[a.ShaderLocation] = a.Format
	}
	for _, l := range s.VertexLayouts() {
		for _, a := range l.Attributes {
			format, ok := supplied[a.ShaderLocation]
			if !ok {
				return common.NewShaderCompileError(common.ShaderStageVertex, nil, "%s: @location(%d) is not supplied by the vertex buffer", s.Key(), a.ShaderLocation)
			}
			if format != a.Format {
				return common.NewShaderCompileError(common.ShaderStageVertex, nil, "%s: @location(%d) expects %v, vertex buffer supplies %v", s.Key(), a.ShaderLocation, a.Format, format)
			}
		}
	}
	return nil
}
