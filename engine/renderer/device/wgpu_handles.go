package device

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	buf   *wgpu.Buffer
	label string
	size  uint64
	usage wgpu.BufferUsage
}

func (b *wgpuBuffer) Label() string           { return b.label }
func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Release()                { b.buf.Release() }

type wgpuShaderModule struct {
	module *wgpu.ShaderModule
}

func (m *wgpuShaderModule) Release() { m.module.Release() }

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
	// owned is false for layouts borrowed from an explicit pipeline layout; the pipeline releases those.
	owned bool
}

func (l *wgpuBindGroupLayout) Release() {
	if l.owned {
		l.layout.Release()
	}
}

type wgpuBindGroup struct {
	group *wgpu.BindGroup
	label string
}

func (g *wgpuBindGroup) Label() string { return g.label }
func (g *wgpuBindGroup) Release()      { g.group.Release() }

// groupLayout resolves a bind group layout either from an explicit pipeline layout or, for
// automatic layouts, by asking the pipeline.
func groupLayout(explicit []*wgpu.BindGroupLayout, group uint32, auto func(uint32) *wgpu.BindGroupLayout) (BindGroupLayout, error) {
	if len(explicit) > 0 {
		if int(group) >= len(explicit) || explicit[group] == nil {
			return nil, fmt.Errorf("device: pipeline has no bind group %d", group)
		}
		return &wgpuBindGroupLayout{layout: explicit[group], owned: false}, nil
	}
	l := auto(group)
	if l == nil {
		return nil, fmt.Errorf("device: pipeline has no bind group %d", group)
	}
	return &wgpuBindGroupLayout{layout: l, owned: true}, nil
}

type wgpuRenderPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
}

func (p *wgpuRenderPipeline) BindGroupLayout(group uint32) (BindGroupLayout, error) {
	return groupLayout(p.groups, group, p.pipeline.GetBindGroupLayout)
}

func (p *wgpuRenderPipeline) Release() {
	p.pipeline.Release()
	if p.layout != nil {
		p.layout.Release()
	}
	for _, l := range p.groups {
		l.Release()
	}
}

type wgpuComputePipeline struct {
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
}

func (p *wgpuComputePipeline) BindGroupLayout(group uint32) (BindGroupLayout, error) {
	return groupLayout(p.groups, group, p.pipeline.GetBindGroupLayout)
}

func (p *wgpuComputePipeline) Release() {
	p.pipeline.Release()
	if p.layout != nil {
		p.layout.Release()
	}
	for _, l := range p.groups {
		l.Release()
	}
}

type wgpuTextureView struct {
	view *wgpu.TextureView
}

func (v *wgpuTextureView) Release() { v.view.Release() }

type wgpuSurfaceTexture struct {
	texture *wgpu.Texture
	view    *wgpuTextureView
}

func (t *wgpuSurfaceTexture) View() TextureView { return t.view }

func (t *wgpuSurfaceTexture) Release() {
	t.view.Release()
	t.texture.Release()
}

type wgpuCommandBuffer struct {
	buffer *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() { c.buffer.Release() }

type wgpuCommandEncoder struct {
	encoder *wgpu.CommandEncoder
}

func (e *wgpuCommandEncoder) BeginRenderPass(label string, attachment ColorAttachment) RenderPass {
	var view *wgpu.TextureView
	if v, ok := attachment.View.(*wgpuTextureView); ok {
		view = v.view
	}
	pass := e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     attachment.LoadOp,
				StoreOp:    attachment.StoreOp,
				ClearValue: attachment.ClearValue,
			},
		},
	})
	return &wgpuRenderPass{pass: pass}
}

func (e *wgpuCommandEncoder) BeginComputePass(label string) ComputePass {
	pass := e.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	return &wgpuComputePass{pass: pass}
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{buffer: cb}, nil
}

func (e *wgpuCommandEncoder) Release() { e.encoder.Release() }

type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

func (p *wgpuRenderPass) SetPipeline(rp RenderPipeline) {
	if w, ok := rp.(*wgpuRenderPipeline); ok {
		p.pass.SetPipeline(w.pipeline)
	}
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	if w, ok := buf.(*wgpuBuffer); ok {
		p.pass.SetVertexBuffer(slot, w.buf, 0, wgpu.WholeSize)
	}
}

func (p *wgpuRenderPass) SetBindGroup(group uint32, bg BindGroup) {
	if w, ok := bg.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(group, w.group, nil)
	}
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	err := p.pass.End()
	p.pass.Release()
	return err
}

type wgpuComputePass struct {
	pass *wgpu.ComputePassEncoder
}

func (p *wgpuComputePass) SetPipeline(cp ComputePipeline) {
	if w, ok := cp.(*wgpuComputePipeline); ok {
		p.pass.SetPipeline(w.pipeline)
	}
}

func (p *wgpuComputePass) SetBindGroup(group uint32, bg BindGroup) {
	if w, ok := bg.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(group, w.group, nil)
	}
}

func (p *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	err := p.pass.End()
	p.pass.Release()
	return err
}
