package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultQuadExtent is the half-size of the reference quad in clip space.
	DefaultQuadExtent float32 = 0.8

	// GeometryLabel is the debug label of the vertex buffer.
	GeometryLabel = "Cell vertices"

	// vertexStride is the byte size of one mgl32.Vec2 vertex.
	vertexStride = 8
)

// QuadVertices returns the two counter-clockwise triangles covering the square [-extent, extent]².
func QuadVertices(extent float32) []mgl32.Vec2 {
	return []mgl32.Vec2{
		{-extent, -extent},
		{extent, -extent},
		{extent, extent},

		{-extent, -extent},
		{extent, extent},
		{-extent, extent},
	}
}

// geometry is the implementation of the Geometry interface.
type geometry struct {
	buffer      device.Buffer
	vertexCount uint32
}

// Geometry is the immutable vertex buffer shared by every cell instance.
type Geometry interface {
	// Buffer returns the vertex buffer bound at slot 0.
	//
	// Returns:
	//   - device.Buffer: the vertex buffer
	Buffer() device.Buffer

	// VertexCount returns the number of vertices drawn per instance.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// Layout describes the buffer: an 8 byte stride holding one float32x2 position at location 0.
	//
	// Returns:
	//   - wgpu.VertexBufferLayout: the vertex buffer layout
	Layout() wgpu.VertexBufferLayout

	// Release frees the vertex buffer.
	Release()
}

var _ Geometry = &geometry{}

// NewGeometry uploads a vertex list into a new vertex buffer.
//
// Parameters:
//   - dev: the device to allocate on
//   - label: debug label of the buffer
//   - vertices: the vertex positions, at least one
//
// Returns:
//   - Geometry: the uploaded geometry
//   - error: common.ErrInvalidArgument for an empty list, common.ErrAllocation if the buffer
//     exceeds the device limits or cannot be created or written
func NewGeometry(dev device.Device, label string, vertices []mgl32.Vec2) (Geometry, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: geometry needs at least one vertex", common.ErrInvalidArgument)
	}
	size := uint64(len(vertices)) * vertexStride
	if limit := dev.Limits().MaxBufferSize; limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %s needs %d bytes, device allows %d", common.ErrAllocation, label, size, limit)
	}

	buf, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrAllocation, label, err)
	}

	err = bind_group_provider.WriteBuffers(dev, []bind_group_provider.BufferWrite{
		{Buffer: buf, Data: common.SliceToBytes(vertices)},
	})
	if err != nil {
		buf.Release()
		return nil, err
	}

	return &geometry{buffer: buf, vertexCount: uint32(len(vertices))}, nil
}

func (g *geometry) Buffer() device.Buffer {
	return g.buffer
}

func (g *geometry) VertexCount() uint32 {
	return g.vertexCount
}

func (g *geometry) Layout() wgpu.VertexBufferLayout {
	return VertexLayout()
}

// VertexLayout is the layout every Geometry shares: one float32x2 position at location 0.
func VertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: vertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		},
	}
}

func (g *geometry) Release() {
	if g.buffer != nil {
		g.buffer.Release()
		g.buffer = nil
	}
}
