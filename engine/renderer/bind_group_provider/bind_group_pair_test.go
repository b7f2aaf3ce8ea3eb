package bind_group_provider

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device/devicetest"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader/source"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registeredRenderPipeline(t *testing.T, dev *devicetest.Device, src string, v pipeline.Variant) pipeline.Pipeline {
	t.Helper()
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, src)
	require.NoError(t, err)
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, src)
	require.NoError(t, err)
	p := pipeline.NewPipeline("Cell pipeline", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs), pipeline.WithFragmentShader(fs), pipeline.WithVariant(v))
	rp, err := dev.CreateRenderPipeline(device.RenderPipelineDescriptor{Label: p.PipelineKey(), BindGroupLayouts: p.BindGroupLayouts()})
	require.NoError(t, err)
	p.SetRenderPipeline(rp)
	return p
}

func registeredComputePipeline(t *testing.T, dev *devicetest.Device) pipeline.Pipeline {
	t.Helper()
	cs, err := shader.NewShader("life", shader.ShaderTypeCompute, source.Life)
	require.NoError(t, err)
	p := pipeline.NewPipeline("Cell simulation", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
	cp, err := dev.CreateComputePipeline(device.ComputePipelineDescriptor{Label: p.PipelineKey(), BindGroupLayouts: p.BindGroupLayouts()})
	require.NoError(t, err)
	p.SetComputePipeline(cp)
	return p
}

func buffers(t *testing.T, dev *devicetest.Device) (device.Buffer, device.Buffer, device.Buffer) {
	t.Helper()
	u, err := dev.CreateBuffer(device.BufferDescriptor{Label: "Grid Uniforms", Size: 8, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
	require.NoError(t, err)
	a, err := dev.CreateBuffer(device.BufferDescriptor{Label: "Cell State A", Size: 64, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst})
	require.NoError(t, err)
	b, err := dev.CreateBuffer(device.BufferDescriptor{Label: "Cell State B", Size: 64, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst})
	require.NoError(t, err)
	return u, a, b
}

func TestSelectIndexAlternates(t *testing.T) {
	got := make([]int, 0, 6)
	for step := uint64(0); step < 6; step++ {
		got = append(got, SelectIndex(step))
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, got)
}

func TestNewBindGroupPairTwoStates(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredRenderPipeline(t, dev, source.Cell, pipeline.VariantState)
	u, a, b := buffers(t, dev)

	pair, err := NewBindGroupPair(dev, p, u, []device.Buffer{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, pair.Len())

	assert.Equal(t, RenderBindGroupLabel+" A", pair.At(0).Label())
	assert.Equal(t, RenderBindGroupLabel+" B", pair.At(1).Label())
	assert.Same(t, a, pair.At(0).Buffer(1))
	assert.Same(t, b, pair.At(1).Buffer(1))
	assert.Same(t, u, pair.At(1).Buffer(0))

	for step := uint64(0); step < 6; step++ {
		assert.Same(t, pair.At(SelectIndex(step)), pair.Select(step))
	}

	bg := pair.At(0).BindGroup().(*devicetest.BindGroup)
	assert.Same(t, a, bg.Entry(1))
	assert.Same(t, u, bg.Entry(0))

	pair.Release()
	assert.True(t, bg.Released)
	assert.False(t, a.(*devicetest.Buffer).Released)
}

func TestNewBindGroupPairSingleState(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredRenderPipeline(t, dev, source.Cell, pipeline.VariantState)
	u, a, _ := buffers(t, dev)

	pair, err := NewBindGroupPair(dev, p, u, []device.Buffer{a})
	require.NoError(t, err)
	require.Equal(t, 1, pair.Len())
	for step := uint64(0); step < 4; step++ {
		assert.Same(t, pair.At(0), pair.Select(step))
	}
}

func TestNewBindGroupPairUniformOnly(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredRenderPipeline(t, dev, source.Grid, pipeline.VariantGrid)
	u, _, _ := buffers(t, dev)

	pair, err := NewBindGroupPair(dev, p, u, nil)
	require.NoError(t, err)
	require.Equal(t, 1, pair.Len())
	assert.Len(t, pair.At(0).Buffers(), 1)
}

func TestNewBindGroupPairLayoutMismatch(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredRenderPipeline(t, dev, source.Grid, pipeline.VariantGrid)
	u, a, b := buffers(t, dev)

	_, err := NewBindGroupPair(dev, p, u, []device.Buffer{a, b})
	assert.ErrorIs(t, err, common.ErrLayoutMismatch)
	assert.Empty(t, dev.BindGroups)

	state := registeredRenderPipeline(t, dev, source.Cell, pipeline.VariantState)
	_, err = NewBindGroupPair(dev, state, u, nil)
	assert.ErrorIs(t, err, common.ErrLayoutMismatch)
	assert.Empty(t, dev.BindGroups)
}

func TestNewBindGroupPairInvalidArguments(t *testing.T) {
	dev := devicetest.NewDevice()
	u, a, b := buffers(t, dev)

	unregistered := pipeline.NewPipeline("Cell pipeline", pipeline.PipelineTypeRender)
	_, err := NewBindGroupPair(dev, unregistered, u, []device.Buffer{a})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	p := registeredRenderPipeline(t, dev, source.Cell, pipeline.VariantState)
	_, err = NewBindGroupPair(dev, p, nil, []device.Buffer{a})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = NewBindGroupPair(dev, p, u, []device.Buffer{a, b, a})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestNewBindGroupPairReleasesOnFailure(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredRenderPipeline(t, dev, source.Cell, pipeline.VariantState)
	u, a, b := buffers(t, dev)

	calls := 0
	dev.FailBindGroup = func(desc device.BindGroupDescriptor) error {
		calls++
		if calls == 2 {
			return errors.New("out of descriptors")
		}
		return nil
	}

	_, err := NewBindGroupPair(dev, p, u, []device.Buffer{a, b})
	require.ErrorIs(t, err, common.ErrAllocation)
	require.Len(t, dev.BindGroups, 1)
	assert.True(t, dev.BindGroups[0].Released)
}

func TestNewComputeBindGroupPairPingPong(t *testing.T) {
	dev := devicetest.NewDevice()
	p := registeredComputePipeline(t, dev)
	u, a, b := buffers(t, dev)

	pair, err := NewComputeBindGroupPair(dev, p, u, [2]device.Buffer{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, pair.Len())

	even := pair.Select(0).BindGroup().(*devicetest.BindGroup)
	assert.Same(t, u, even.Entry(0))
	assert.Same(t, b, even.Entry(1))
	assert.Same(t, a, even.Entry(2))

	odd := pair.Select(1).BindGroup().(*devicetest.BindGroup)
	assert.Same(t, a, odd.Entry(1))
	assert.Same(t, b, odd.Entry(2))
	assert.Equal(t, ComputeBindGroupLabel+" B", odd.Label())
}

func TestNewComputeBindGroupPairRejectsRenderLayout(t *testing.T) {
	dev := devicetest.NewDevice()
	u, a, b := buffers(t, dev)

	cs, err := shader.NewShader("no-out", shader.ShaderTypeCompute, `
@group(0) @binding(0) var<uniform> grid: vec2f;
@group(0) @binding(1) var<storage> cellStateIn: array<u32>;
@compute @workgroup_size(8, 8)
fn computeMain(@builtin(global_invocation_id) cell: vec3u) {}
`)
	require.NoError(t, err)
	p := pipeline.NewPipeline("no-out", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
	cp, err := dev.CreateComputePipeline(device.ComputePipelineDescriptor{BindGroupLayouts: p.BindGroupLayouts()})
	require.NoError(t, err)
	p.SetComputePipeline(cp)

	_, err = NewComputeBindGroupPair(dev, p, u, [2]device.Buffer{a, b})
	assert.ErrorIs(t, err, common.ErrLayoutMismatch)

	_, err = NewComputeBindGroupPair(dev, p, u, [2]device.Buffer{a, nil})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestWriteBuffers(t *testing.T) {
	dev := devicetest.NewDevice()
	u, a, _ := buffers(t, dev)

	err := WriteBuffers(dev, []BufferWrite{
		{Buffer: u, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{Buffer: a, Offset: 4, Data: []byte{9}},
	})
	require.NoError(t, err)
	require.Len(t, dev.Writes, 2)
	assert.Equal(t, byte(9), a.(*devicetest.Buffer).Data[4])

	err = WriteBuffers(dev, []BufferWrite{{Buffer: u, Offset: 4, Data: make([]byte, 8)}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	dev.FailWriteBuffer = func(device.Buffer) error { return errors.New("queue lost") }
	err = WriteBuffers(dev, []BufferWrite{{Buffer: a, Data: []byte{1}}})
	assert.ErrorIs(t, err, common.ErrAllocation)
}
