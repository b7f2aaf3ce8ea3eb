package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device/devicetest"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader/source"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, dev *devicetest.Device, surface *devicetest.Surface, g grid.Grid, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	opts = append([]RendererBuilderOption{WithLogger(common.NewNopLogger())}, opts...)
	r, err := NewRenderer(dev, surface, g, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func square(t *testing.T, size uint32) grid.Grid {
	t.Helper()
	g, err := grid.Square(size)
	require.NoError(t, err)
	return g
}

func bufferByLabel(dev *devicetest.Device, label string) *devicetest.Buffer {
	for _, b := range dev.Buffers {
		if b.Desc.Label == label {
			return b
		}
	}
	return nil
}

func TestNewRendererAllocatesOnce(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, dev, surface, square(t, 4))

	require.Len(t, dev.Buffers, 4)
	assert.NotNil(t, bufferByLabel(dev, GeometryLabel))
	assert.NotNil(t, bufferByLabel(dev, UniformLabel))
	assert.NotNil(t, bufferByLabel(dev, StateLabelA))
	assert.NotNil(t, bufferByLabel(dev, StateLabelB))
	assert.Len(t, dev.RenderPipelines, 1)
	assert.Len(t, dev.BindGroups, 2)
	assert.Empty(t, dev.Submissions)

	assert.Equal(t, uint64(0), r.Step())
	assert.Equal(t, FrameStateIdle, r.State())
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, r.Format())
	assert.Equal(t, pipeline.VariantState, r.Variant())
	assert.NotNil(t, r.Pipeline(PipelineLabel))
	assert.Nil(t, r.Pipeline(SimulationLabel))
	assert.Nil(t, r.Pipeline("missing"))

	for _, m := range dev.ShaderModules {
		assert.True(t, m.Released, "shader module %q should be released once the pipeline exists", m.Label)
	}
}

func TestNewRendererDefaultPatterns(t *testing.T) {
	dev := devicetest.NewDevice()
	g := square(t, 4)
	newTestRenderer(t, dev, devicetest.NewSurface(), g)

	a := grid.Fill(g, grid.EveryNth(3))
	assert.Equal(t, []uint32{0, 3, 6, 9, 12, 15}, a.Live())
	assert.Equal(t, a.Bytes(), bufferByLabel(dev, StateLabelA).Data)
	assert.Equal(t, grid.Fill(g, grid.Checkerboard()).Bytes(), bufferByLabel(dev, StateLabelB).Data)
	assert.Equal(t, common.SliceToBytes([]mgl32.Vec2{{4, 4}}), bufferByLabel(dev, UniformLabel).Data)
	assert.Equal(t, common.SliceToBytes(QuadVertices(DefaultQuadExtent)), bufferByLabel(dev, GeometryLabel).Data)
}

func TestNewRendererRejectsPatternLength(t *testing.T) {
	dev := devicetest.NewDevice()
	g := square(t, 4)

	for _, patterns := range [][]grid.Pattern{
		{make(grid.Pattern, 15)},
		{make(grid.Pattern, 16), make(grid.Pattern, 17)},
		{make(grid.Pattern, 16), make(grid.Pattern, 16), make(grid.Pattern, 16)},
	} {
		_, err := NewRenderer(dev, devicetest.NewSurface(), g, WithPatterns(patterns...), WithLogger(common.NewNopLogger()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidArgument), err)
	}
	assert.Empty(t, dev.Buffers)
	assert.Empty(t, dev.RenderPipelines)
}

func TestNewRendererRejectsZeroGrid(t *testing.T) {
	dev := devicetest.NewDevice()
	_, err := NewRenderer(dev, devicetest.NewSurface(), grid.Grid{Width: 0, Height: 4}, WithLogger(common.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	assert.Empty(t, dev.Buffers)
}

func TestNewRendererUnsupportedFormat(t *testing.T) {
	tests := []struct {
		name      string
		supported []wgpu.TextureFormat
		requested wgpu.TextureFormat
	}{
		{"not offered by surface", []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm}, wgpu.TextureFormatRGBA16Float},
		{"not a render target", []wgpu.TextureFormat{wgpu.TextureFormatDepth32Float}, wgpu.TextureFormatUndefined},
		{"no formats", nil, wgpu.TextureFormatUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.NewDevice()
			surface := devicetest.NewSurface()
			surface.SupportedFormats = tt.supported

			// An invalid pattern as well: the format must be rejected first.
			_, err := NewRenderer(dev, surface, square(t, 4),
				WithColorFormat(tt.requested),
				WithPatterns(make(grid.Pattern, 3)),
				WithLogger(common.NewNopLogger()),
			)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrConfiguration), err)
			assert.Empty(t, dev.Buffers)
			assert.Empty(t, surface.Configured)
		})
	}
}

func TestNewRendererRequestedFormat(t *testing.T) {
	r := newTestRenderer(t, devicetest.NewDevice(), devicetest.NewSurface(), square(t, 2), WithColorFormat(wgpu.TextureFormatRGBA8Unorm))
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, r.Format())
}

func TestNewRendererShaderErrorsBeforeAllocation(t *testing.T) {
	tests := []struct {
		name string
		opts []RendererBuilderOption
	}{
		{"missing entry point", []RendererBuilderOption{WithEntryPoints("vsMain", "")}},
		{"unbalanced source", []RendererBuilderOption{WithShaderSource("@vertex fn vertexMain( -> @builtin(position) vec4f {")}},
		{"simulation without output binding", []RendererBuilderOption{WithSimulation(source.Cell)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.NewDevice()
			_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4), append(tt.opts, WithLogger(common.NewNopLogger()))...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrShaderCompile), err)
			assert.Empty(t, dev.Buffers)
			assert.Empty(t, dev.ShaderModules)
		})
	}
}

func TestNewRendererVariantMismatchBeforeAllocation(t *testing.T) {
	tests := []struct {
		name    string
		variant pipeline.Variant
		src     string
	}{
		{"state variant with uniform-only shader", pipeline.VariantState, source.Grid},
		{"grid variant with state shader", pipeline.VariantGrid, source.Cell},
		{"quad variant with state shader", pipeline.VariantQuad, source.Cell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.NewDevice()
			_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4),
				WithVariant(tt.variant), WithShaderSource(tt.src), WithLogger(common.NewNopLogger()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrLayoutMismatch), err)
			assert.False(t, errors.Is(err, common.ErrShaderCompile), err)
			assert.Empty(t, dev.Buffers)
			assert.Empty(t, dev.ShaderModules)
		})
	}
}

func TestNewRendererModuleFailureReleasesEverything(t *testing.T) {
	dev := devicetest.NewDevice()
	dev.FailShaderModule = func(label, code string) error {
		return errors.New("error: expected ';'")
	}

	_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4), WithLogger(common.NewNopLogger()))
	require.Error(t, err)

	var compileErr *common.ShaderCompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, common.ShaderStageVertex, compileErr.Stage)
	assert.NotEmpty(t, dev.Buffers)
	assert.Empty(t, dev.LiveBuffers())
}

func TestNewRendererBindGroupFailureReleasesEverything(t *testing.T) {
	dev := devicetest.NewDevice()
	calls := 0
	dev.FailBindGroup = func(desc device.BindGroupDescriptor) error {
		calls++
		if calls == 2 {
			return errors.New("out of memory")
		}
		return nil
	}

	_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4), WithLogger(common.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.LiveBuffers())
	require.Len(t, dev.RenderPipelines, 1)
	assert.True(t, dev.RenderPipelines[0].Released)
	require.Len(t, dev.BindGroups, 1)
	assert.True(t, dev.BindGroups[0].Released)
}

func TestNewRendererBufferLimit(t *testing.T) {
	dev := devicetest.NewDevice()
	dev.DeviceLimits.MaxStorageBufferBindingSize = 32

	_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4), WithLogger(common.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.LiveBuffers())
}

func TestAdvanceSubmitsOncePerCall(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, dev, surface, square(t, 4))

	const n = 7
	for range n {
		require.NoError(t, r.Advance())
	}

	assert.Equal(t, uint64(n), r.Step())
	assert.Equal(t, uint64(n), r.Submissions())
	assert.Len(t, dev.Submissions, n)
	assert.Equal(t, n, surface.Presented)
	assert.Equal(t, FrameStateIdle, r.State())
	for _, tex := range surface.Textures {
		assert.True(t, tex.Released)
	}
	for _, e := range dev.Encoders {
		assert.True(t, e.Released)
		assert.True(t, strings.Contains(e.Label, r.ID().String()[:8]), e.Label)
	}
}

func TestAdvanceDrawsEveryCell(t *testing.T) {
	dev := devicetest.NewDevice()
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 4))
	require.NoError(t, r.Advance())

	require.Len(t, dev.Submissions, 1)
	passes := dev.Submissions[0].Passes
	require.Len(t, passes, 1)
	pass := passes[0]
	assert.False(t, pass.Compute)
	assert.Equal(t, wgpu.LoadOpClear, pass.Attachment.LoadOp)
	assert.Equal(t, wgpu.StoreOpStore, pass.Attachment.StoreOp)
	assert.Equal(t, DefaultClearColor, pass.Attachment.ClearValue)

	require.Len(t, pass.Draws, 1)
	draw := pass.Draws[0]
	assert.Equal(t, uint32(6), draw.VertexCount)
	assert.Equal(t, uint32(16), draw.InstanceCount)
	assert.Same(t, dev.RenderPipelines[0], draw.Pipeline)
	assert.Same(t, bufferByLabel(dev, GeometryLabel), draw.VertexBuffer)
}

func TestAdvanceAlternatesStateBuffers(t *testing.T) {
	dev := devicetest.NewDevice()
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 4))

	for range 6 {
		require.NoError(t, r.Advance())
	}

	draws := dev.Draws()
	require.Len(t, draws, 6)
	for i, d := range draws {
		step := uint64(i + 1)
		want := StateLabelA
		if bind_group_provider.SelectIndex(step) == 1 {
			want = StateLabelB
		}
		bg := d.BindGroups[0]
		require.NotNil(t, bg)
		assert.Equal(t, want, bg.Entry(1).Desc.Label, "step %d", step)
		assert.Equal(t, UniformLabel, bg.Entry(0).Desc.Label)
	}
	// No bind group is created after initialization.
	assert.Len(t, dev.BindGroups, 2)
}

func TestAdvanceSingleCell(t *testing.T) {
	dev := devicetest.NewDevice()
	g := square(t, 1)
	r := newTestRenderer(t, dev, devicetest.NewSurface(), g, WithPatterns(grid.Pattern{1}))

	require.NoError(t, r.Advance())
	require.NoError(t, r.Advance())

	draws := dev.Draws()
	require.Len(t, draws, 2)
	for _, d := range draws {
		assert.Equal(t, uint32(1), d.InstanceCount)
		assert.Equal(t, StateLabelA, d.BindGroups[0].Entry(1).Desc.Label)
	}
	assert.Len(t, dev.BindGroups, 1)
	assert.Nil(t, bufferByLabel(dev, StateLabelB))

	tr := g.Transform(0, 1)
	assert.Equal(t, mgl32.Vec2{0, 0}, tr.Center())
	assert.Equal(t, mgl32.Vec2{1, 1}, tr.Scale)
}

func TestAdvanceQuadVariant(t *testing.T) {
	dev := devicetest.NewDevice()
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 4), WithVariant(pipeline.VariantQuad))

	require.NoError(t, r.Advance())

	assert.Len(t, dev.Buffers, 1)
	assert.Empty(t, dev.BindGroups)
	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(6), draws[0].VertexCount)
	assert.Equal(t, uint32(1), draws[0].InstanceCount)
	assert.Empty(t, draws[0].BindGroups)
}

func TestAdvanceGridVariant(t *testing.T) {
	dev := devicetest.NewDevice()
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 4), WithVariant(pipeline.VariantGrid))

	require.NoError(t, r.Advance())
	require.NoError(t, r.Advance())

	require.Len(t, dev.BindGroups, 1)
	for _, d := range dev.Draws() {
		assert.Equal(t, uint32(16), d.InstanceCount)
		bg := d.BindGroups[0]
		require.NotNil(t, bg)
		assert.Equal(t, UniformLabel, bg.Entry(0).Desc.Label)
		assert.Nil(t, bg.Entry(1))
	}
}

func TestAdvanceCustomVertices(t *testing.T) {
	dev := devicetest.NewDevice()
	tri := []mgl32.Vec2{{-1, -1}, {1, -1}, {0, 1}}
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 3), WithVertices(tri))

	require.NoError(t, r.Advance())
	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(3), draws[0].VertexCount)
	assert.Equal(t, uint32(9), draws[0].InstanceCount)
}

func TestAdvanceSurfaceUnavailable(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	surface.FailAcquire = func(call int) error {
		if call == 0 {
			return errors.New("surface outdated")
		}
		return nil
	}
	r := newTestRenderer(t, dev, surface, square(t, 4))

	err := r.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSurfaceUnavailable))
	assert.Equal(t, uint64(1), r.Step())
	assert.Equal(t, uint64(0), r.Submissions())
	assert.Equal(t, FrameStateIdle, r.State())
	assert.Empty(t, dev.Submissions)
	assert.Empty(t, dev.Encoders)
	assert.Equal(t, 0, surface.Presented)

	require.NoError(t, r.Advance())
	assert.Equal(t, uint64(2), r.Step())
	assert.Equal(t, uint64(1), r.Submissions())
}

func TestAdvanceEncodingFailureNeverSubmits(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, dev, surface, square(t, 4))

	dev.FailFinish = func() error { return errors.New("encoder invalid") }
	err := r.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.Submissions)
	assert.Equal(t, 0, surface.Presented)
	assert.Equal(t, FrameStateIdle, r.State())
	require.Len(t, dev.Encoders, 1)
	assert.True(t, dev.Encoders[0].Released)
	assert.True(t, surface.Textures[0].Released)

	dev.FailFinish = nil
	dev.FailCommandEncoder = func(string) error { return errors.New("device lost") }
	err = r.Advance()
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.Submissions)
	assert.Equal(t, uint64(2), r.Step())
}

func TestAdvanceStates(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, dev, surface, square(t, 4))

	var encoding, submitted FrameState
	var reentrant error
	dev.OnCreateCommandEncoder = func(string) {
		encoding = r.State()
		reentrant = r.Advance()
	}
	surface.OnPresent = func() {
		submitted = r.State()
	}

	require.NoError(t, r.Advance())
	assert.Equal(t, FrameStateEncoding, encoding)
	assert.Equal(t, FrameStateSubmitted, submitted)
	assert.Equal(t, FrameStateIdle, r.State())
	assert.True(t, errors.Is(reentrant, common.ErrFrameInFlight))
	assert.Equal(t, uint64(1), r.Step())
	assert.Len(t, dev.Submissions, 1)
}

func TestSimulationPingPong(t *testing.T) {
	dev := devicetest.NewDevice()
	r := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 20), WithSimulation(""))

	require.Len(t, dev.ComputePipelines, 1)
	assert.NotNil(t, r.Pipeline(SimulationLabel))

	for range 4 {
		require.NoError(t, r.Advance())
	}
	require.Len(t, dev.Submissions, 4)

	for i, sub := range dev.Submissions {
		step := uint64(i + 1)
		written, read := StateLabelA, StateLabelB
		if bind_group_provider.SelectIndex(step) == 1 {
			written, read = StateLabelB, StateLabelA
		}

		require.Len(t, sub.Passes, 2, "step %d", step)
		compute, render := sub.Passes[0], sub.Passes[1]
		require.True(t, compute.Compute)
		require.False(t, render.Compute)

		require.Len(t, compute.Dispatches, 1)
		dispatch := compute.Dispatches[0]
		assert.Equal(t, [3]uint32{3, 3, 1}, dispatch.Groups)
		assert.Equal(t, read, dispatch.BindGroups[0].Entry(1).Desc.Label)
		assert.Equal(t, written, dispatch.BindGroups[0].Entry(2).Desc.Label)

		require.Len(t, render.Draws, 1)
		assert.Equal(t, written, render.Draws[0].BindGroups[0].Entry(1).Desc.Label)
	}
}

func TestSimulationSinglePatternZeroFillsB(t *testing.T) {
	dev := devicetest.NewDevice()
	g := square(t, 4)
	seed := grid.Fill(g, grid.Glider(0, 0))
	newTestRenderer(t, dev, devicetest.NewSurface(), g, WithSimulation(""), WithPatterns(seed))

	b := bufferByLabel(dev, StateLabelB)
	require.NotNil(t, b)
	assert.Equal(t, make([]byte, 64), b.Data)
	assert.Equal(t, seed.Bytes(), bufferByLabel(dev, StateLabelA).Data)
}

func TestSimulationRequiresStateVariant(t *testing.T) {
	dev := devicetest.NewDevice()
	_, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4),
		WithVariant(pipeline.VariantGrid), WithSimulation(""), WithLogger(common.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
	assert.Empty(t, dev.Buffers)
}

func TestSimulationRunsWhenSurfaceUnavailable(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	surface.FailAcquire = func(int) error { return errors.New("minimized") }
	r := newTestRenderer(t, dev, surface, square(t, 4), WithSimulation(""))

	err := r.Advance()
	assert.True(t, errors.Is(err, common.ErrSurfaceUnavailable))
	assert.Equal(t, uint64(1), r.Step())
	assert.Equal(t, uint64(1), r.Submissions())
	require.Len(t, dev.Submissions, 1)
	require.Len(t, dev.Submissions[0].Passes, 1)
	assert.True(t, dev.Submissions[0].Passes[0].Compute)
	assert.Empty(t, dev.Draws())
	assert.Equal(t, 0, surface.Presented)
}

func TestSimulationFailureWithoutSurfaceIsFatal(t *testing.T) {
	dev := devicetest.NewDevice()
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, dev, surface, square(t, 4), WithSimulation(""))

	surface.FailAcquire = func(int) error { return errors.New("minimized") }
	dev.FailCommandEncoder = func(string) error { return errors.New("device lost") }

	err := r.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAllocation), err)
	assert.False(t, errors.Is(err, common.ErrSurfaceUnavailable), err)
	assert.Equal(t, uint64(0), r.Submissions())
	assert.Empty(t, dev.Submissions)
	assert.Equal(t, FrameStateIdle, r.State())
}

func TestResize(t *testing.T) {
	surface := devicetest.NewSurface()
	r := newTestRenderer(t, devicetest.NewDevice(), surface, square(t, 4),
		WithSurfaceSize(640, 480), WithPresentMode(PresentModeUncapped))

	require.Len(t, surface.Configured, 1)
	assert.Equal(t, devicetest.SurfaceConfig{
		Format:      wgpu.TextureFormatBGRA8Unorm,
		Width:       640,
		Height:      480,
		PresentMode: wgpu.PresentModeImmediate,
	}, surface.Configured[0])

	require.NoError(t, r.Resize(0, 300))
	require.NoError(t, r.Resize(800, 0))
	assert.Len(t, surface.Configured, 1)

	require.NoError(t, r.Resize(800, 600))
	require.Len(t, surface.Configured, 2)
	assert.Equal(t, uint32(800), surface.Configured[1].Width)
	assert.Equal(t, uint32(600), surface.Configured[1].Height)
}

func TestReleaseFreesEverything(t *testing.T) {
	dev := devicetest.NewDevice()
	r, err := NewRenderer(dev, devicetest.NewSurface(), square(t, 4), WithSimulation(""), WithLogger(common.NewNopLogger()))
	require.NoError(t, err)
	require.NoError(t, r.Advance())

	r.Release()
	r.Release()

	assert.Empty(t, dev.LiveBuffers())
	for _, bg := range dev.BindGroups {
		assert.True(t, bg.Released, bg.Desc.Label)
	}
	assert.True(t, dev.RenderPipelines[0].Released)
	assert.True(t, dev.ComputePipelines[0].Released)
	assert.False(t, dev.Released)

	err = r.Advance()
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	assert.Len(t, dev.Submissions, 1)
}

func TestRendererIDsAreUnique(t *testing.T) {
	dev := devicetest.NewDevice()
	a := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 2))
	b := newTestRenderer(t, dev, devicetest.NewSurface(), square(t, 2))
	assert.NotEqual(t, a.ID(), b.ID())
}
