package bind_group_provider

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
)

// Bindings of the simulation bind groups.
const (
	computeUniformBinding uint32 = 0
	computeInBinding      uint32 = 1
	computeOutBinding     uint32 = 2
)

// Labels of the bind groups; the pair suffixes them with A and B.
const (
	RenderBindGroupLabel  = "Cell renderer bind group"
	ComputeBindGroupLabel = "Cell simulation bind group"
)

// pairSuffixes name the bind groups of a pair in order.
var pairSuffixes = [2]string{"A", "B"}

// bindGroupPair is the implementation of the BindGroupPair interface.
type bindGroupPair struct {
	providers []BindGroupProvider
}

// BindGroupPair holds the precomputed bind groups a pipeline switches between, one per cell state
// buffer. Switching the active state buffer means selecting a different group; no group is ever
// rebuilt after creation.
type BindGroupPair interface {
	// Len returns the number of bind groups, 1 or 2.
	//
	// Returns:
	//   - int: the number of groups
	Len() int

	// At returns the provider at index i.
	//
	// Parameters:
	//   - i: the index, 0 <= i < Len()
	//
	// Returns:
	//   - BindGroupProvider: the provider
	At(i int) BindGroupProvider

	// Select returns the provider used on a given step, At(step % Len()).
	//
	// Parameters:
	//   - step: the frame step counter
	//
	// Returns:
	//   - BindGroupProvider: the provider to bind this frame
	Select(step uint64) BindGroupProvider

	// Release releases every bind group in the pair.
	Release()
}

var _ BindGroupPair = &bindGroupPair{}

// SelectIndex returns the bind group index used on a step: 0 on even steps and 1 on odd steps.
//
// Parameters:
//   - step: the frame step counter
//
// Returns:
//   - int: step % 2
func SelectIndex(step uint64) int {
	return int(step % 2)
}

// NewBindGroupPair creates one bind group per state buffer against group 0 of a registered render
// pipeline, binding the grid uniform at binding 0 and the state buffer at binding 1. With no state
// buffers a single group holding only the uniform is created.
//
// Parameters:
//   - dev: the device to create bind groups on
//   - p: a render pipeline that has been registered with the device
//   - uniform: the grid uniform buffer
//   - states: zero, one or two state buffers
//
// Returns:
//   - BindGroupPair: the created pair
//   - error: common.ErrLayoutMismatch if the pipeline layout lacks a binding the buffers need,
//     common.ErrInvalidArgument for bad inputs, common.ErrAllocation if the device refuses
func NewBindGroupPair(dev device.Device, p pipeline.Pipeline, uniform device.Buffer, states []device.Buffer) (BindGroupPair, error) {
	if p == nil || p.RenderPipeline() == nil {
		return nil, fmt.Errorf("%w: render pipeline is not registered", common.ErrInvalidArgument)
	}
	if uniform == nil {
		return nil, fmt.Errorf("%w: grid uniform buffer is nil", common.ErrInvalidArgument)
	}
	if len(states) > 2 {
		return nil, fmt.Errorf("%w: expected at most 2 state buffers, got %d", common.ErrInvalidArgument, len(states))
	}

	needed := []uint32{pipeline.UniformBinding}
	if len(states) > 0 {
		needed = append(needed, pipeline.StateBinding)
	}
	if err := checkLayout(p, needed); err != nil {
		return nil, err
	}

	layout, err := p.RenderPipeline().BindGroupLayout(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLayoutMismatch, p.PipelineKey(), err)
	}
	defer layout.Release()

	var sets [][]device.BindGroupEntry
	if len(states) == 0 {
		sets = append(sets, []device.BindGroupEntry{{Binding: pipeline.UniformBinding, Buffer: uniform}})
	}
	for _, state := range states {
		if state == nil {
			return nil, fmt.Errorf("%w: state buffer is nil", common.ErrInvalidArgument)
		}
		sets = append(sets, []device.BindGroupEntry{
			{Binding: pipeline.UniformBinding, Buffer: uniform},
			{Binding: pipeline.StateBinding, Buffer: state},
		})
	}

	return createPair(dev, layout, RenderBindGroupLabel, sets)
}

// NewComputeBindGroupPair creates the two simulation bind groups of a registered compute pipeline.
// Index 0 reads state B and writes state A, index 1 reads A and writes B, so the group chosen by
// SelectIndex(step) always writes the buffer the render pass reads on the same step.
//
// Parameters:
//   - dev: the device to create bind groups on
//   - p: a compute pipeline that has been registered with the device
//   - uniform: the grid uniform buffer
//   - states: exactly two state buffers, A then B
//
// Returns:
//   - BindGroupPair: the created pair
//   - error: common.ErrLayoutMismatch if the pipeline lacks bindings 0-2, common.ErrInvalidArgument
//     for bad inputs, common.ErrAllocation if the device refuses
func NewComputeBindGroupPair(dev device.Device, p pipeline.Pipeline, uniform device.Buffer, states [2]device.Buffer) (BindGroupPair, error) {
	if p == nil || p.ComputePipeline() == nil {
		return nil, fmt.Errorf("%w: compute pipeline is not registered", common.ErrInvalidArgument)
	}
	if uniform == nil || states[0] == nil || states[1] == nil {
		return nil, fmt.Errorf("%w: simulation needs the uniform and both state buffers", common.ErrInvalidArgument)
	}
	if err := checkLayout(p, []uint32{computeUniformBinding, computeInBinding, computeOutBinding}); err != nil {
		return nil, err
	}

	layout, err := p.ComputePipeline().BindGroupLayout(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLayoutMismatch, p.PipelineKey(), err)
	}
	defer layout.Release()

	sets := make([][]device.BindGroupEntry, 2)
	for i := range sets {
		in, out := states[1-i], states[i]
		sets[i] = []device.BindGroupEntry{
			{Binding: computeUniformBinding, Buffer: uniform},
			{Binding: computeInBinding, Buffer: in},
			{Binding: computeOutBinding, Buffer: out},
		}
	}
	return createPair(dev, layout, ComputeBindGroupLabel, sets)
}

// checkLayout verifies that group 0 of the pipeline declares every binding in needed and nothing else.
func checkLayout(p pipeline.Pipeline, needed []uint32) error {
	layouts := p.BindGroupLayouts()
	declared := make(map[uint32]bool)
	if len(layouts) > 0 {
		for _, e := range layouts[0].Entries {
			declared[e.Binding] = true
		}
	}
	for _, b := range needed {
		if !declared[b] {
			return fmt.Errorf("%w: %s declares no @group(0) @binding(%d)", common.ErrLayoutMismatch, p.PipelineKey(), b)
		}
		delete(declared, b)
	}
	if len(declared) > 0 {
		extra := make([]uint32, 0, len(declared))
		for b := range declared {
			extra = append(extra, b)
		}
		slices.Sort(extra)
		return fmt.Errorf("%w: %s declares @group(0) bindings %v with no buffer to bind", common.ErrLayoutMismatch, p.PipelineKey(), extra)
	}
	return nil
}

// createPair creates one bind group per entry set, releasing the ones already created if any fails.
func createPair(dev device.Device, layout device.BindGroupLayout, prefix string, sets [][]device.BindGroupEntry) (BindGroupPair, error) {
	pair := &bindGroupPair{}
	for i, entries := range sets {
		label := prefix + " " + pairSuffixes[i]
		bg, err := dev.CreateBindGroup(device.BindGroupDescriptor{
			Label:   label,
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			pair.Release()
			return nil, fmt.Errorf("%w: %s: %v", common.ErrAllocation, label, err)
		}

		buffers := make(map[int]device.Buffer, len(entries))
		for _, e := range entries {
			buffers[int(e.Binding)] = e.Buffer
		}
		pair.providers = append(pair.providers, NewBindGroupProvider(label, WithBindGroup(bg), WithBuffers(buffers)))
	}
	return pair, nil
}

func (p *bindGroupPair) Len() int {
	return len(p.providers)
}

func (p *bindGroupPair) At(i int) BindGroupProvider {
	return p.providers[i]
}

func (p *bindGroupPair) Select(step uint64) BindGroupProvider {
	return p.providers[int(step%uint64(len(p.providers)))]
}

func (p *bindGroupPair) Release() {
	for _, provider := range p.providers {
		provider.Release()
	}
	p.providers = nil
}
