package bind_group_provider

import "github.com/Carmen-Shannon/cellgrid/engine/renderer/device"

// BindGroupProviderOption configures a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroup hands ownership of a created bind group to the provider.
func WithBindGroup(bg device.BindGroup) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroup = bg
	}
}

// WithBuffers records which buffer sits at each binding of the bind group, e.g. {0: uniform,
// 1: state A}. The provider does not take ownership of them.
func WithBuffers(buffers map[int]device.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, buf := range buffers {
			p.buffers[binding] = buf
		}
	}
}
