// Package device abstracts the slice of the WebGPU API the cell renderer drives. The renderer only
// talks to these interfaces, so the frame protocol can be exercised without a physical adapter;
// the production implementation wraps github.com/cogentcore/webgpu.
package device

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Limits holds the device limits the renderer checks before allocating.
type Limits struct {
	MaxBufferSize               uint64
	MaxStorageBufferBindingSize uint64
	MaxUniformBufferBindingSize uint64
}

// Buffer is a GPU buffer handle.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() wgpu.BufferUsage
	Release()
}

// ShaderModule is a compiled shader module.
type ShaderModule interface {
	Release()
}

// BindGroupLayout is the resource layout of one bind group slot of a pipeline.
type BindGroupLayout interface {
	Release()
}

// BindGroup is an immutable association of buffers to binding slots.
type BindGroup interface {
	Label() string
	Release()
}

// RenderPipeline is a compiled render pipeline.
type RenderPipeline interface {
	// BindGroupLayout returns the layout of bind group slot group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - BindGroupLayout: the layout
	//   - error: an error if the pipeline has no such group
	BindGroupLayout(group uint32) (BindGroupLayout, error)
	Release()
}

// ComputePipeline is a compiled compute pipeline.
type ComputePipeline interface {
	BindGroupLayout(group uint32) (BindGroupLayout, error)
	Release()
}

// TextureView is a view onto a render target.
type TextureView interface {
	Release()
}

// SurfaceTexture is the drawable acquired from a Surface for one frame.
type SurfaceTexture interface {
	View() TextureView

	// Release drops the view and the texture. Call after Present or when abandoning the frame.
	Release()
}

// CommandBuffer is a finished, submittable command sequence.
type CommandBuffer interface {
	Release()
}

// RenderPass records draw commands into a CommandEncoder.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetBindGroup(group uint32, bg BindGroup)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End() error
}

// ComputePass records dispatches into a CommandEncoder.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(group uint32, bg BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

// ColorAttachment describes the single colour target of a render pass.
type ColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// CommandEncoder records passes into a CommandBuffer.
type CommandEncoder interface {
	BeginRenderPass(label string, attachment ColorAttachment) RenderPass
	BeginComputePass(label string) ComputePass
	Finish() (CommandBuffer, error)
	Release()
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// RenderPipelineDescriptor describes a single colour target render pipeline.
// An empty BindGroupLayouts lets the implementation derive the layout from the shader.
type RenderPipelineDescriptor struct {
	Label string

	VertexModule     ShaderModule
	VertexEntryPoint string
	VertexBuffers    []wgpu.VertexBufferLayout

	FragmentModule     ShaderModule
	FragmentEntryPoint string

	Format    wgpu.TextureFormat
	Blend     *wgpu.BlendState
	WriteMask wgpu.ColorWriteMask

	Primitive wgpu.PrimitiveState

	BindGroupLayouts []wgpu.BindGroupLayoutDescriptor
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label            string
	Module           ShaderModule
	EntryPoint       string
	BindGroupLayouts []wgpu.BindGroupLayoutDescriptor
}

// BindGroupEntry binds a whole buffer to a binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// Device is the opened logical GPU device together with its queue.
type Device interface {
	// Limits returns the limits the device was opened with.
	//
	// Returns:
	//   - Limits: the device limits
	Limits() Limits

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: label, size in bytes and usage flags
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the device refused the allocation
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// WriteBuffer schedules a queue write of data into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer, must carry CopyDst usage
	//   - offset: byte offset into buf
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error if the write could not be queued
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateShaderModule compiles WGSL source.
	//
	// Parameters:
	//   - label: debug label for the module
	//   - code: the WGSL source
	//
	// Returns:
	//   - ShaderModule: the compiled module
	//   - error: the compiler diagnostic on failure
	CreateShaderModule(label, code string) (ShaderModule, error)

	// CreateRenderPipeline creates a render pipeline.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - RenderPipeline: the pipeline
	//   - error: an error if validation failed
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateComputePipeline creates a compute pipeline.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - ComputePipeline: the pipeline
	//   - error: an error if validation failed
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// CreateBindGroup creates a bind group against a pipeline layout.
	//
	// Parameters:
	//   - desc: the layout and the buffer entries
	//
	// Returns:
	//   - BindGroup: the bind group
	//   - error: an error if the entries do not satisfy the layout
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// CreateCommandEncoder opens a new command sequence.
	//
	// Parameters:
	//   - label: debug label for the encoder
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: an error if the encoder could not be created
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit hands finished command sequences to the queue without waiting for completion.
	//
	// Parameters:
	//   - cmds: the command buffers, executed in order
	Submit(cmds ...CommandBuffer)

	// Release destroys the device and everything opened with it.
	Release()
}

// Surface is the presentation target.
type Surface interface {
	// Formats lists the texture formats the surface can be configured with, preferred first.
	//
	// Returns:
	//   - []wgpu.TextureFormat: the supported formats
	Formats() []wgpu.TextureFormat

	// Configure (re)configures the swapchain.
	//
	// Parameters:
	//   - format: the colour format, must be one of Formats()
	//   - width, height: the drawable size in pixels
	//   - mode: the present mode
	//
	// Returns:
	//   - error: an error if the configuration is rejected
	Configure(format wgpu.TextureFormat, width, height uint32, mode wgpu.PresentMode) error

	// Acquire returns the drawable for the current frame.
	//
	// Returns:
	//   - SurfaceTexture: the drawable
	//   - error: an error if no drawable is available
	Acquire() (SurfaceTexture, error)

	// Present queues the acquired drawable for display.
	Present()

	Release()
}
