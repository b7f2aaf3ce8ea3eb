// Package devicetest provides an in-memory device.Device and device.Surface that record every call.
// Tests use it to check allocation counts, draw arguments and submission order without a GPU.
package devicetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// Draw records one Draw call together with the state bound at the time.
type Draw struct {
	Pipeline      *RenderPipeline
	VertexBuffer  *Buffer
	BindGroups    map[uint32]*BindGroup
	VertexCount   uint32
	InstanceCount uint32
}

// Dispatch records one DispatchWorkgroups call.
type Dispatch struct {
	Pipeline   *ComputePipeline
	BindGroups map[uint32]*BindGroup
	Groups     [3]uint32
}

// Pass records a render or compute pass in encoding order.
type Pass struct {
	Label      string
	Compute    bool
	Attachment device.ColorAttachment
	Draws      []Draw
	Dispatches []Dispatch
	Ended      bool
}

// Submission records the passes of one submitted command buffer.
type Submission struct {
	Label  string
	Passes []*Pass
}

// Device is a fake device.Device. The Fail* hooks inject errors; nil hooks always succeed.
type Device struct {
	mu sync.Mutex

	DeviceLimits device.Limits

	FailCreateBuffer       func(desc device.BufferDescriptor) error
	FailWriteBuffer        func(buf device.Buffer) error
	FailShaderModule       func(label, code string) error
	FailRenderPipeline     func(desc device.RenderPipelineDescriptor) error
	FailComputePipeline    func(desc device.ComputePipelineDescriptor) error
	FailBindGroup          func(desc device.BindGroupDescriptor) error
	FailCommandEncoder     func(label string) error
	FailFinish             func() error
	OnCreateCommandEncoder func(label string)

	Buffers          []*Buffer
	Writes           []Write
	ShaderModules    []*ShaderModule
	RenderPipelines  []*RenderPipeline
	ComputePipelines []*ComputePipeline
	BindGroups       []*BindGroup
	Encoders         []*CommandEncoder
	Submissions      []Submission
	Released         bool
}

// Write records one WriteBuffer call.
type Write struct {
	Buffer *Buffer
	Offset uint64
	Data   []byte
}

var _ device.Device = &Device{}

// NewDevice creates a fake device with limits matching the WebGPU defaults.
func NewDevice() *Device {
	return &Device{
		DeviceLimits: device.Limits{
			MaxBufferSize:               256 << 20,
			MaxStorageBufferBindingSize: 128 << 20,
			MaxUniformBufferBindingSize: 64 << 10,
		},
	}
}

func (d *Device) Limits() device.Limits {
	return d.DeviceLimits
}

func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCreateBuffer != nil {
		if err := d.FailCreateBuffer(desc); err != nil {
			return nil, err
		}
	}
	b := &Buffer{Desc: desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) WriteBuffer(buf device.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWriteBuffer != nil {
		if err := d.FailWriteBuffer(buf); err != nil {
			return err
		}
	}
	b, ok := buf.(*Buffer)
	if !ok {
		return errors.New("devicetest: foreign buffer")
	}
	if b.Desc.Usage&wgpu.BufferUsageCopyDst == 0 {
		return fmt.Errorf("devicetest: buffer %q lacks CopyDst usage", b.Desc.Label)
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return fmt.Errorf("devicetest: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.Desc.Label, b.Desc.Size)
	}
	copy(b.Data[offset:], data)
	d.Writes = append(d.Writes, Write{Buffer: b, Offset: offset, Data: append([]byte(nil), data...)})
	return nil
}

func (d *Device) CreateShaderModule(label, code string) (device.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailShaderModule != nil {
		if err := d.FailShaderModule(label, code); err != nil {
			return nil, err
		}
	}
	m := &ShaderModule{Label: label, Code: code}
	d.ShaderModules = append(d.ShaderModules, m)
	return m, nil
}

func (d *Device) CreateRenderPipeline(desc device.RenderPipelineDescriptor) (device.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailRenderPipeline != nil {
		if err := d.FailRenderPipeline(desc); err != nil {
			return nil, err
		}
	}
	p := &RenderPipeline{Desc: desc}
	d.RenderPipelines = append(d.RenderPipelines, p)
	return p, nil
}

func (d *Device) CreateComputePipeline(desc device.ComputePipelineDescriptor) (device.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailComputePipeline != nil {
		if err := d.FailComputePipeline(desc); err != nil {
			return nil, err
		}
	}
	p := &ComputePipeline{Desc: desc}
	d.ComputePipelines = append(d.ComputePipelines, p)
	return p, nil
}

func (d *Device) CreateBindGroup(desc device.BindGroupDescriptor) (device.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailBindGroup != nil {
		if err := d.FailBindGroup(desc); err != nil {
			return nil, err
		}
	}
	if _, ok := desc.Layout.(*BindGroupLayout); !ok {
		return nil, errors.New("devicetest: foreign bind group layout")
	}
	bg := &BindGroup{Desc: desc}
	d.BindGroups = append(d.BindGroups, bg)
	return bg, nil
}

func (d *Device) CreateCommandEncoder(label string) (device.CommandEncoder, error) {
	if d.OnCreateCommandEncoder != nil {
		d.OnCreateCommandEncoder(label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCommandEncoder != nil {
		if err := d.FailCommandEncoder(label); err != nil {
			return nil, err
		}
	}
	e := &CommandEncoder{Label: label, dev: d}
	d.Encoders = append(d.Encoders, e)
	return e, nil
}

func (d *Device) Submit(cmds ...device.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range cmds {
		if cb, ok := c.(*CommandBuffer); ok {
			d.Submissions = append(d.Submissions, Submission{Label: cb.Label, Passes: cb.Passes})
		}
	}
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Released = true
}

// Draws returns every draw recorded across all submissions, in order.
func (d *Device) Draws() []Draw {
	d.mu.Lock()
	defer d.mu.Unlock()
	var draws []Draw
	for _, s := range d.Submissions {
		for _, p := range s.Passes {
			draws = append(draws, p.Draws...)
		}
	}
	return draws
}

// LiveBuffers returns the buffers that have not been released.
func (d *Device) LiveBuffers() []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	var live []*Buffer
	for _, b := range d.Buffers {
		if !b.Released {
			live = append(live, b)
		}
	}
	return live
}

// Buffer is a fake buffer backed by a byte slice.
type Buffer struct {
	Desc     device.BufferDescriptor
	Data     []byte
	Released bool
}

func (b *Buffer) Label() string           { return b.Desc.Label }
func (b *Buffer) Size() uint64            { return b.Desc.Size }
func (b *Buffer) Usage() wgpu.BufferUsage { return b.Desc.Usage }
func (b *Buffer) Release()                { b.Released = true }

// ShaderModule is a fake shader module.
type ShaderModule struct {
	Label    string
	Code     string
	Released bool
}

func (m *ShaderModule) Release() { m.Released = true }

// BindGroupLayout is a fake layout remembering its owner and group index.
type BindGroupLayout struct {
	Group uint32
	Owner any
}

func (l *BindGroupLayout) Release() {}

// BindGroup is a fake bind group.
type BindGroup struct {
	Desc     device.BindGroupDescriptor
	Released bool
}

func (g *BindGroup) Label() string { return g.Desc.Label }
func (g *BindGroup) Release()      { g.Released = true }

// Entry returns the buffer bound at binding, or nil.
func (g *BindGroup) Entry(binding uint32) *Buffer {
	for _, e := range g.Desc.Entries {
		if e.Binding == binding {
			b, _ := e.Buffer.(*Buffer)
			return b
		}
	}
	return nil
}

// RenderPipeline is a fake render pipeline.
type RenderPipeline struct {
	Desc     device.RenderPipelineDescriptor
	Released bool
}

func (p *RenderPipeline) BindGroupLayout(group uint32) (device.BindGroupLayout, error) {
	if len(p.Desc.BindGroupLayouts) > 0 && int(group) >= len(p.Desc.BindGroupLayouts) {
		return nil, fmt.Errorf("devicetest: pipeline %q has no bind group %d", p.Desc.Label, group)
	}
	return &BindGroupLayout{Group: group, Owner: p}, nil
}

func (p *RenderPipeline) Release() { p.Released = true }

// ComputePipeline is a fake compute pipeline.
type ComputePipeline struct {
	Desc     device.ComputePipelineDescriptor
	Released bool
}

func (p *ComputePipeline) BindGroupLayout(group uint32) (device.BindGroupLayout, error) {
	if len(p.Desc.BindGroupLayouts) > 0 && int(group) >= len(p.Desc.BindGroupLayouts) {
		return nil, fmt.Errorf("devicetest: pipeline %q has no bind group %d", p.Desc.Label, group)
	}
	return &BindGroupLayout{Group: group, Owner: p}, nil
}

func (p *ComputePipeline) Release() { p.Released = true }

// CommandEncoder is a fake encoder collecting passes.
type CommandEncoder struct {
	Label    string
	Passes   []*Pass
	Finished bool
	Released bool
	dev      *Device
}

func (e *CommandEncoder) BeginRenderPass(label string, attachment device.ColorAttachment) device.RenderPass {
	p := &Pass{Label: label, Attachment: attachment}
	e.Passes = append(e.Passes, p)
	return &RenderPass{pass: p, groups: map[uint32]*BindGroup{}}
}

func (e *CommandEncoder) BeginComputePass(label string) device.ComputePass {
	p := &Pass{Label: label, Compute: true}
	e.Passes = append(e.Passes, p)
	return &ComputePass{pass: p, groups: map[uint32]*BindGroup{}}
}

func (e *CommandEncoder) Finish() (device.CommandBuffer, error) {
	if e.dev != nil && e.dev.FailFinish != nil {
		if err := e.dev.FailFinish(); err != nil {
			return nil, err
		}
	}
	for _, p := range e.Passes {
		if !p.Ended {
			return nil, fmt.Errorf("devicetest: pass %q was not ended", p.Label)
		}
	}
	e.Finished = true
	return &CommandBuffer{Label: e.Label, Passes: e.Passes}, nil
}

func (e *CommandEncoder) Release() { e.Released = true }

// CommandBuffer is a fake finished command buffer.
type CommandBuffer struct {
	Label    string
	Passes   []*Pass
	Released bool
}

func (c *CommandBuffer) Release() { c.Released = true }

// RenderPass is a fake render pass.
type RenderPass struct {
	pass     *Pass
	pipeline *RenderPipeline
	vertex   *Buffer
	groups   map[uint32]*BindGroup
}

func (p *RenderPass) SetPipeline(rp device.RenderPipeline) {
	p.pipeline, _ = rp.(*RenderPipeline)
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buf device.Buffer) {
	if slot == 0 {
		p.vertex, _ = buf.(*Buffer)
	}
}

func (p *RenderPass) SetBindGroup(group uint32, bg device.BindGroup) {
	p.groups[group], _ = bg.(*BindGroup)
}

func (p *RenderPass) Draw(vertexCount, instanceCount, _, _ uint32) {
	groups := make(map[uint32]*BindGroup, len(p.groups))
	for k, v := range p.groups {
		groups[k] = v
	}
	p.pass.Draws = append(p.pass.Draws, Draw{
		Pipeline:      p.pipeline,
		VertexBuffer:  p.vertex,
		BindGroups:    groups,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
	})
}

func (p *RenderPass) End() error {
	p.pass.Ended = true
	return nil
}

// ComputePass is a fake compute pass.
type ComputePass struct {
	pass     *Pass
	pipeline *ComputePipeline
	groups   map[uint32]*BindGroup
}

func (p *ComputePass) SetPipeline(cp device.ComputePipeline) {
	p.pipeline, _ = cp.(*ComputePipeline)
}

func (p *ComputePass) SetBindGroup(group uint32, bg device.BindGroup) {
	p.groups[group], _ = bg.(*BindGroup)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	groups := make(map[uint32]*BindGroup, len(p.groups))
	for k, v := range p.groups {
		groups[k] = v
	}
	p.pass.Dispatches = append(p.pass.Dispatches, Dispatch{
		Pipeline:   p.pipeline,
		BindGroups: groups,
		Groups:     [3]uint32{x, y, z},
	})
}

func (p *ComputePass) End() error {
	p.pass.Ended = true
	return nil
}

// Surface is a fake presentation surface.
type Surface struct {
	mu sync.Mutex

	SupportedFormats []wgpu.TextureFormat

	// FailAcquire, when set, is consulted on every Acquire; a non-nil error fails that frame.
	FailAcquire func(call int) error

	// OnPresent, when set, runs at the start of every Present.
	OnPresent func()

	Acquired   int
	Presented  int
	Configured []SurfaceConfig
	Textures   []*SurfaceTexture
	Released   bool
}

// SurfaceConfig records one Configure call.
type SurfaceConfig struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	PresentMode wgpu.PresentMode
}

var _ device.Surface = &Surface{}

// NewSurface creates a fake surface preferring BGRA8Unorm.
func NewSurface() *Surface {
	return &Surface{
		SupportedFormats: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatRGBA8Unorm},
	}
}

func (s *Surface) Formats() []wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SupportedFormats
}

func (s *Surface) Configure(format wgpu.TextureFormat, width, height uint32, mode wgpu.PresentMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == 0 || height == 0 {
		return fmt.Errorf("devicetest: cannot configure a %dx%d surface", width, height)
	}
	s.Configured = append(s.Configured, SurfaceConfig{Format: format, Width: width, Height: height, PresentMode: mode})
	return nil
}

func (s *Surface) Acquire() (device.SurfaceTexture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.Acquired
	s.Acquired++
	if s.FailAcquire != nil {
		if err := s.FailAcquire(call); err != nil {
			return nil, err
		}
	}
	t := &SurfaceTexture{view: &TextureView{}}
	s.Textures = append(s.Textures, t)
	return t, nil
}

func (s *Surface) Present() {
	if s.OnPresent != nil {
		s.OnPresent()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Presented++
}

func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Released = true
}

// TextureView is a fake texture view.
type TextureView struct {
	Released bool
}

func (v *TextureView) Release() { v.Released = true }

// SurfaceTexture is a fake acquired drawable.
type SurfaceTexture struct {
	view     *TextureView
	Released bool
}

func (t *SurfaceTexture) View() device.TextureView { return t.view }

func (t *SurfaceTexture) Release() {
	t.view.Release()
	t.Released = true
}
