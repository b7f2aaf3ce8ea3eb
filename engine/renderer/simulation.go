package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// SimulationLabel is the key and debug label of the simulation pipeline.
const SimulationLabel = "Cell simulation"

// simulation advances the cell state by one generation per frame in a compute pass that writes
// the state buffer the following render pass reads.
type simulation struct {
	pipeline   pipeline.Pipeline
	bindGroups bind_group_provider.BindGroupPair
	workgroups [3]uint32
}

// newSimulation registers the compute pipeline for s and builds its ping-pong bind groups.
//
// Parameters:
//   - dev: the device
//   - s: a compute shader declaring the uniform at binding 0, the read-only input state at
//     binding 1 and the read_write output state at binding 2
//   - g: the grid, used to size the dispatch
//   - store: a state store holding two state buffers
//
// Returns:
//   - *simulation: the ready simulation stage
//   - error: a *common.ShaderCompileError, common.ErrLayoutMismatch or common.ErrAllocation
func newSimulation(dev device.Device, s shader.Shader, g grid.Grid, store GridStateStore) (*simulation, error) {
	states := store.States()
	if len(states) != 2 {
		return nil, fmt.Errorf("%w: simulation needs two state buffers, have %d", common.ErrInvalidArgument, len(states))
	}
	if err := checkSimulationBindings(s); err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline(SimulationLabel, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
	if err := registerComputePipeline(dev, p); err != nil {
		return nil, err
	}

	pair, err := bind_group_provider.NewComputeBindGroupPair(dev, p, store.Uniform(), [2]device.Buffer{states[0], states[1]})
	if err != nil {
		p.Release()
		return nil, err
	}

	wg := s.WorkgroupSize()
	return &simulation{
		pipeline:   p,
		bindGroups: pair,
		workgroups: [3]uint32{common.DivCeil(g.Width, wg[0]), common.DivCeil(g.Height, wg[1]), 1},
	}, nil
}

// checkSimulationBindings verifies the binding types the simulation stage relies on.
func checkSimulationBindings(s shader.Shader) error {
	want := []struct {
		binding int
		kind    wgpu.BufferBindingType
		name    string
	}{
		{0, wgpu.BufferBindingTypeUniform, "uniform"},
		{1, wgpu.BufferBindingTypeReadOnlyStorage, "read-only storage"},
		{2, wgpu.BufferBindingTypeStorage, "read_write storage"},
	}
	for _, w := range want {
		e, ok := s.BindingEntry(0, w.binding)
		if !ok || e.Buffer.Type != w.kind {
			return common.NewShaderCompileError(common.ShaderStageCompute, nil, "%s: @group(0) @binding(%d) must be a %s buffer", s.Key(), w.binding, w.name)
		}
	}
	return nil
}

// encode records the compute pass producing the state read on step.
func (s *simulation) encode(enc device.CommandEncoder, step uint64) error {
	pass := enc.BeginComputePass(SimulationLabel)
	pass.SetPipeline(s.pipeline.ComputePipeline())
	pass.SetBindGroup(0, s.bindGroups.Select(step).BindGroup())
	pass.DispatchWorkgroups(s.workgroups[0], s.workgroups[1], s.workgroups[2])
	return pass.End()
}

func (s *simulation) release() {
	if s.bindGroups != nil {
		s.bindGroups.Release()
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
}
