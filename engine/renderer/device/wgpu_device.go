package device

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Options configure OpenWGPU.
type Options struct {
	// Label names the logical device.
	Label string

	// ForceFallbackAdapter selects a software adapter (lavapipe, SwiftShader) instead of hardware.
	ForceFallbackAdapter bool

	// PowerPreference hints which adapter to pick on multi-GPU systems.
	PowerPreference wgpu.PowerPreference
}

type wgpuDevice struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   Limits
}

type wgpuSurface struct {
	mu      *sync.Mutex
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
}

var (
	_ Device  = &wgpuDevice{}
	_ Surface = &wgpuSurface{}
)

// OpenWGPU creates a WebGPU instance, a surface for the given platform descriptor, an adapter
// compatible with that surface and a logical device with its queue. The calling goroutine is
// locked to its OS thread, as the native backends require.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically Window.SurfaceDescriptor()
//   - opts: adapter and device options
//
// Returns:
//   - Device: the opened device
//   - Surface: the unconfigured presentation surface
//   - error: an error if no compatible adapter or device is available
func OpenWGPU(surfaceDescriptor *wgpu.SurfaceDescriptor, opts Options) (Device, Surface, error) {
	if surfaceDescriptor == nil {
		return nil, nil, errors.New("device: nil surface descriptor")
	}
	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(surfaceDescriptor)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		CompatibleSurface:    surface,
		PowerPreference:      opts.PowerPreference,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("device: request adapter: %w", err)
	}

	limits := wgpu.DefaultLimits()
	label := opts.Label
	if label == "" {
		label = "Cell Device"
	}
	d, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("device: request device: %w", err)
	}

	dev := &wgpuDevice{
		mu:       &sync.Mutex{},
		instance: instance,
		adapter:  adapter,
		device:   d,
		queue:    d.GetQueue(),
		limits: Limits{
			MaxBufferSize:               uint64(limits.MaxBufferSize),
			MaxStorageBufferBindingSize: uint64(limits.MaxStorageBufferBindingSize),
			MaxUniformBufferBindingSize: uint64(limits.MaxUniformBufferBindingSize),
		},
	}
	surf := &wgpuSurface{
		mu:      &sync.Mutex{},
		surface: surface,
		adapter: adapter,
		device:  d,
	}
	return dev, surf, nil
}

func (d *wgpuDevice) Limits() Limits {
	return d.limits
}

func (d *wgpuDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buf: buf, label: desc.Label, size: desc.Size, usage: desc.Usage}, nil
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("device: buffer %q was not created by this device", buf.Label())
	}
	return d.queue.WriteBuffer(b.buf, offset, data)
}

func (d *wgpuDevice) CreateShaderModule(label, code string) (ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: code,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{module: m}, nil
}

// createLayouts builds explicit bind group layouts and the pipeline layout joining them.
// A nil pipeline layout with no error means the pipeline should use an automatic layout.
func (d *wgpuDevice) createLayouts(label string, descs []wgpu.BindGroupLayoutDescriptor) (*wgpu.PipelineLayout, []*wgpu.BindGroupLayout, error) {
	if len(descs) == 0 {
		return nil, nil, nil
	}
	layouts := make([]*wgpu.BindGroupLayout, len(descs))
	release := func() {
		for _, l := range layouts {
			if l != nil {
				l.Release()
			}
		}
	}
	for g := range descs {
		desc := descs[g]
		if desc.Label == "" {
			desc.Label = fmt.Sprintf("%s Group %d", label, g)
		}
		l, err := d.device.CreateBindGroupLayout(&desc)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = l
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return pl, layouts, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, ok := desc.VertexModule.(*wgpuShaderModule)
	if !ok {
		return nil, errors.New("device: vertex module was not created by this device")
	}
	fs, ok := desc.FragmentModule.(*wgpuShaderModule)
	if !ok {
		return nil, errors.New("device: fragment module was not created by this device")
	}

	pipelineLayout, groupLayouts, err := d.createLayouts(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, err
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs.module,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs.module,
			EntryPoint: desc.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    desc.Format,
					Blend:     desc.Blend,
					WriteMask: desc.WriteMask,
				},
			},
		},
		Primitive: desc.Primitive,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		if pipelineLayout != nil {
			pipelineLayout.Release()
		}
		for _, l := range groupLayouts {
			l.Release()
		}
		return nil, err
	}
	return &wgpuRenderPipeline{pipeline: created, layout: pipelineLayout, groups: groupLayouts}, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs, ok := desc.Module.(*wgpuShaderModule)
	if !ok {
		return nil, errors.New("device: compute module was not created by this device")
	}

	pipelineLayout, groupLayouts, err := d.createLayouts(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, err
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs.module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		if pipelineLayout != nil {
			pipelineLayout.Release()
		}
		for _, l := range groupLayouts {
			l.Release()
		}
		return nil, err
	}
	return &wgpuComputePipeline{pipeline: created, layout: pipelineLayout, groups: groupLayouts}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, errors.New("device: bind group layout was not created by this device")
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		buf, ok := e.Buffer.(*wgpuBuffer)
		if !ok {
			return nil, fmt.Errorf("device: binding %d buffer was not created by this device", e.Binding)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: e.Binding,
			Buffer:  buf.buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{group: bg, label: desc.Label}, nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{encoder: enc}, nil
}

func (d *wgpuDevice) Submit(cmds ...CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buffers := make([]*wgpu.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if cb, ok := c.(*wgpuCommandBuffer); ok {
			buffers = append(buffers, cb.buffer)
		}
	}
	if len(buffers) == 0 {
		return
	}
	d.queue.Submit(buffers...)
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (s *wgpuSurface) Formats() []wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps := s.surface.GetCapabilities(s.adapter)
	return caps.Formats
}

func (s *wgpuSurface) Configure(format wgpu.TextureFormat, width, height uint32, mode wgpu.PresentMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps := s.surface.GetCapabilities(s.adapter)
	if len(caps.AlphaModes) == 0 {
		return errors.New("device: surface reports no alpha modes")
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("device: cannot configure a %dx%d surface", width, height)
	}
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: mode,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

func (s *wgpuSurface) Acquire() (SurfaceTexture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuSurfaceTexture{texture: tex, view: &wgpuTextureView{view: view}}, nil
}

func (s *wgpuSurface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.Present()
}

func (s *wgpuSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}
