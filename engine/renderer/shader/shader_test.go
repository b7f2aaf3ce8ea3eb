package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader/source"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellShaderVertexReflection(t *testing.T) {
	s, err := NewShader("cell", ShaderTypeVertex, source.Cell, WithEntryPoint("vertexMain"), WithLabel("Cell shader"))
	require.NoError(t, err)

	assert.Equal(t, "vertexMain", s.EntryPoint())
	assert.Equal(t, "Cell shader", s.Label())
	assert.Equal(t, "cell", s.Key())

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(8), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0].StepMode)
	require.Len(t, layouts[0].Attributes, 1)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layouts[0].Attributes[0].Format)
	assert.Equal(t, uint64(0), layouts[0].Attributes[0].Offset)
	assert.Equal(t, uint32(0), layouts[0].Attributes[0].ShaderLocation)

	uniform, ok := s.BindingEntry(0, 0)
	require.True(t, ok)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, uniform.Buffer.Type)
	assert.Equal(t, uint64(8), uniform.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex, uniform.Visibility)

	state, ok := s.BindingEntry(0, 1)
	require.True(t, ok)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, state.Buffer.Type)
	assert.Equal(t, uint64(4), state.Buffer.MinBindingSize)

	_, ok = s.BindingEntry(0, 2)
	assert.False(t, ok)

	assert.Equal(t, "cellState", s.BindGroupVarName(0, 1))
	binding, ok := s.BindGroupFromVarName(0, "grid")
	assert.True(t, ok)
	assert.Equal(t, 0, binding)
	_, ok = s.BindGroupFromVarName(0, "missing")
	assert.False(t, ok)

	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())
}

func TestCellShaderFragmentReflection(t *testing.T) {
	s, err := NewShader("cell", ShaderTypeFragment, source.Cell)
	require.NoError(t, err)

	assert.Equal(t, "fragmentMain", s.EntryPoint())
	assert.Empty(t, s.VertexLayouts())

	uniform, ok := s.BindingEntry(0, 0)
	require.True(t, ok)
	assert.Equal(t, wgpu.ShaderStageFragment, uniform.Visibility)
}

func TestLifeShaderComputeReflection(t *testing.T) {
	s, err := NewShader("life", ShaderTypeCompute, source.Life)
	require.NoError(t, err)

	assert.Equal(t, "computeMain", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())

	in, ok := s.BindingEntry(0, 1)
	require.True(t, ok)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, in.Buffer.Type)

	out, ok := s.BindingEntry(0, 2)
	require.True(t, ok)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, out.Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, out.Visibility)
}

func TestQuadShaderHasNoBindings(t *testing.T) {
	s, err := NewShader("quad", ShaderTypeVertex, source.Quad)
	require.NoError(t, err)
	assert.Empty(t, s.BindGroupLayoutDescriptors())
	require.Len(t, s.VertexLayouts(), 1)
}

func TestGridShaderDeclaresOnlyUniform(t *testing.T) {
	s, err := NewShader("grid", ShaderTypeVertex, source.Grid)
	require.NoError(t, err)
	desc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, desc.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
}

func TestShaderValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		shaderType ShaderType
		src        string
		opts       []ShaderBuilderOption
		stage      common.ShaderStage
	}{
		{"empty", ShaderTypeVertex, "  // nothing here\n", nil, common.ShaderStageVertex},
		{"no fragment entry", ShaderTypeFragment, "@vertex fn vertexMain(@location(0) pos: vec2f) -> @builtin(position) vec4f { return vec4f(pos, 0, 1); }", nil, common.ShaderStageFragment},
		{"unbalanced", ShaderTypeVertex, "@vertex fn vertexMain(@location(0) pos: vec2f) -> @builtin(position) vec4f {\n return vec4f(pos, 0, 1);\n", nil, common.ShaderStageVertex},
		{"wrong entry name", ShaderTypeVertex, source.Cell, []ShaderBuilderOption{WithEntryPoint("vsMain")}, common.ShaderStageVertex},
		{"no compute entry", ShaderTypeCompute, source.Cell, nil, common.ShaderStageCompute},
		{"untagged vertex input", ShaderTypeVertex, "@vertex fn vertexMain(pos: vec2f) -> @builtin(position) vec4f { return vec4f(pos, 0, 1); }", nil, common.ShaderStageVertex},
		{"unsupported vertex type", ShaderTypeVertex, "@vertex fn vertexMain(@location(0) m: mat2x2<f32>) -> @builtin(position) vec4f { return vec4f(0); }", nil, common.ShaderStageVertex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShader(tt.name, tt.shaderType, tt.src, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrShaderCompile)

			var sce *common.ShaderCompileError
			require.True(t, errors.As(err, &sce))
			assert.Equal(t, tt.stage, sce.Stage)
		})
	}
}

func TestVertexInputsFromStructParameter(t *testing.T) {
	src := `
struct VertexInput {
  @location(0) pos: vec2f,
  @location(1) uv: vec2f,
  @builtin(vertex_index) index: u32,
};

@vertex
fn vs(in: VertexInput, @location(2) tint: vec4f) -> @builtin(position) vec4f {
  return vec4f(in.pos, 0, 1) * tint;
}
`
	s, err := NewShader("struct-input", ShaderTypeVertex, src)
	require.NoError(t, err)

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(32), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 3)
	assert.Equal(t, uint32(1), layouts[0].Attributes[1].ShaderLocation)
	assert.Equal(t, uint64(8), layouts[0].Attributes[1].Offset)
	assert.Equal(t, wgpu.VertexFormatFloat32x4, layouts[0].Attributes[2].Format)
	assert.Equal(t, uint64(16), layouts[0].Attributes[2].Offset)
}

func TestStructBindingSizes(t *testing.T) {
	src := `
struct Params {
  size: vec2f,
  scale: vec3f,
  generation: u32,
};
/* block comment with @group(1) @binding(9) var<uniform> ghost: f32; */
@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(3) var<storage, read_write> cells: array<vec4u, 4>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3u) {}
`
	s, err := NewShader("sizes", ShaderTypeCompute, src)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())

	params, ok := s.BindingEntry(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(32), params.Buffer.MinBindingSize)

	cells, ok := s.BindingEntry(1, 3)
	require.True(t, ok)
	assert.Equal(t, uint64(64), cells.Buffer.MinBindingSize)

	_, ok = s.BindingEntry(1, 9)
	assert.False(t, ok)
}

func TestNewShaderFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(source.Cell), 0o644))

	s, err := NewShaderFromPath("cell", ShaderTypeVertex, path)
	require.NoError(t, err)
	assert.Equal(t, source.Cell, s.Source())

	_, err = NewShaderFromPath("missing", ShaderTypeVertex, filepath.Join(t.TempDir(), "nope.wgsl"))
	assert.Error(t, err)
}

func TestShaderTypeStage(t *testing.T) {
	assert.Equal(t, common.ShaderStageVertex, ShaderTypeVertex.Stage())
	assert.Equal(t, common.ShaderStageFragment, ShaderTypeFragment.Stage())
	assert.Equal(t, common.ShaderStageCompute, ShaderTypeCompute.Stage())
	assert.Equal(t, wgpu.ShaderStageCompute, ShaderTypeCompute.Visibility())
}
