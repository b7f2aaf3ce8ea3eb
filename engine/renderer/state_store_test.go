package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device/devicetest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeometry(t *testing.T) {
	dev := devicetest.NewDevice()
	geom, err := NewGeometry(dev, GeometryLabel, QuadVertices(DefaultQuadExtent))
	require.NoError(t, err)

	assert.Equal(t, uint32(6), geom.VertexCount())
	buf := dev.Buffers[0]
	assert.Equal(t, uint64(48), buf.Desc.Size)
	assert.Equal(t, wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst, buf.Desc.Usage)

	layout := geom.Layout()
	assert.Equal(t, uint64(8), layout.ArrayStride)
	require.Len(t, layout.Attributes, 1)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layout.Attributes[0].Format)
	assert.Equal(t, uint32(0), layout.Attributes[0].ShaderLocation)

	geom.Release()
	assert.True(t, buf.Released)
}

func TestQuadVerticesCoverSquare(t *testing.T) {
	v := QuadVertices(0.8)
	require.Len(t, v, 6)
	for _, p := range v {
		assert.InDelta(t, 0.8, abs(p.X()), 1e-6)
		assert.InDelta(t, 0.8, abs(p.Y()), 1e-6)
	}
	// Both triangles share the diagonal from (-e,-e) to (e,e).
	assert.Equal(t, v[0], v[3])
	assert.Equal(t, v[2], v[4])
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestNewGeometryErrors(t *testing.T) {
	dev := devicetest.NewDevice()
	_, err := NewGeometry(dev, GeometryLabel, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	dev.DeviceLimits.MaxBufferSize = 16
	_, err = NewGeometry(dev, GeometryLabel, QuadVertices(1))
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.Buffers)

	dev.DeviceLimits.MaxBufferSize = 0
	dev.FailWriteBuffer = func(device.Buffer) error { return errors.New("queue lost") }
	_, err = NewGeometry(dev, GeometryLabel, QuadVertices(1))
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Empty(t, dev.LiveBuffers())
}

func TestNewGridStateStore(t *testing.T) {
	dev := devicetest.NewDevice()
	g, err := grid.New(4, 2)
	require.NoError(t, err)
	a := grid.Fill(g, grid.EveryNth(3))
	b := grid.Fill(g, grid.Checkerboard())

	store, err := NewGridStateStore(dev, g, a, b)
	require.NoError(t, err)
	assert.Equal(t, g, store.Grid())

	u := store.Uniform().(*devicetest.Buffer)
	assert.Equal(t, uint64(8), u.Desc.Size)
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, u.Desc.Usage)
	assert.Equal(t, common.SliceToBytes([]mgl32.Vec2{{4, 2}}), u.Data)

	require.Len(t, store.States(), 2)
	for i, p := range []grid.Pattern{a, b} {
		s := store.States()[i].(*devicetest.Buffer)
		assert.Equal(t, stateLabel(i), s.Desc.Label)
		assert.Equal(t, uint64(32), s.Desc.Size)
		assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst, s.Desc.Usage)
		assert.Equal(t, p.Bytes(), s.Data)
	}

	store.Release()
	assert.Empty(t, dev.LiveBuffers())
}

func TestNewGridStateStoreValidatesFirst(t *testing.T) {
	g, err := grid.Square(4)
	require.NoError(t, err)

	tests := []struct {
		name     string
		patterns []grid.Pattern
	}{
		{"none", nil},
		{"short", []grid.Pattern{make(grid.Pattern, 15)}},
		{"long B", []grid.Pattern{make(grid.Pattern, 16), make(grid.Pattern, 20)}},
		{"three", []grid.Pattern{make(grid.Pattern, 16), make(grid.Pattern, 16), make(grid.Pattern, 16)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.NewDevice()
			_, err := NewGridStateStore(dev, g, tt.patterns...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidArgument))
			assert.Empty(t, dev.Buffers)
		})
	}
}

func TestNewGridStateStoreReleasesOnFailure(t *testing.T) {
	dev := devicetest.NewDevice()
	dev.FailCreateBuffer = func(desc device.BufferDescriptor) error {
		if desc.Label == StateLabelB {
			return errors.New("out of memory")
		}
		return nil
	}
	g, err := grid.Square(4)
	require.NoError(t, err)

	_, err = NewGridStateStore(dev, g, make(grid.Pattern, 16), make(grid.Pattern, 16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAllocation))
	assert.Len(t, dev.Buffers, 2)
	assert.Empty(t, dev.LiveBuffers())
}

func TestResolveColorFormat(t *testing.T) {
	surface := []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatRGBA8Unorm}

	f, err := resolveColorFormat(wgpu.TextureFormatUndefined, surface)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, f)

	f, err = resolveColorFormat(wgpu.TextureFormatRGBA8Unorm, surface)
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, f)

	_, err = resolveColorFormat(wgpu.TextureFormatBGRA8Unorm, surface)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestParsePresentMode(t *testing.T) {
	m, err := ParsePresentMode("uncapped")
	require.NoError(t, err)
	assert.Equal(t, PresentModeUncapped, m)
	assert.Equal(t, wgpu.PresentModeImmediate, m.wgpu())

	m, err = ParsePresentMode("")
	require.NoError(t, err)
	assert.Equal(t, PresentModeVSync, m)
	assert.Equal(t, wgpu.PresentModeFifo, m.wgpu())

	_, err = ParsePresentMode("mailbox")
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}
