package bind_group_provider

import (
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group created for this provider, or nil until it is initialized.
	bindGroup device.BindGroup
	// buffers holds the buffers bound by bindGroup, keyed by binding index. They are owned elsewhere.
	buffers map[int]device.Buffer
}

// BindGroupProvider pairs a GPU bind group with the buffers bound to it. The provider owns the
// bind group; the buffers belong to whoever allocated them (the grid state store) and outlive it.
type BindGroupProvider interface {
	// Release releases the bind group. The bound buffers are left untouched.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - device.BindGroup: the bind group or nil
	BindGroup() device.BindGroup

	// Buffer returns the buffer bound at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - device.Buffer: the buffer or nil
	Buffer(binding int) device.Buffer

	// Buffers returns all bound buffers keyed by binding index.
	//
	// Returns:
	//   - map[int]device.Buffer: the buffers keyed by binding index
	Buffers() map[int]device.Buffer
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a BindGroupProvider with the given label and options.
//
// Parameters:
//   - label: the debug label for the provider
//   - options: functional options applied in order
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]device.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() device.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) device.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]device.Buffer {
	return p.buffers
}
