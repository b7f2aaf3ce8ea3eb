package renderer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultClearColor is the background the render pass clears to.
var DefaultClearColor = wgpu.Color{R: 0, G: 0, B: 0.4, A: 1}

// frameDriver is the implementation of the FrameDriver interface.
type frameDriver struct {
	mu sync.Mutex

	step        atomic.Uint64
	submissions atomic.Uint64
	state       atomic.Int32

	dev        device.Device
	surface    device.Surface
	pipeline   pipeline.Pipeline
	geometry   Geometry
	bindGroups bind_group_provider.BindGroupPair
	simulation *simulation
	grid       grid.Grid
	clearColor wgpu.Color
	label      string
	logger     common.Logger
	released   bool
}

// FrameDriver records, submits and presents one frame per Advance call. It owns the step counter
// that selects the active state buffer.
type FrameDriver interface {
	// Advance increments the step and renders one frame with the bind group for the new step.
	// Calls are serialized; a call made while a frame is still being recorded fails immediately.
	//
	// Returns:
	//   - error: common.ErrSurfaceUnavailable when no drawable could be acquired (the step still
	//     advances), common.ErrFrameInFlight on re-entry, common.ErrAllocation when recording fails
	Advance() error

	// Step returns the number of Advance calls that got past re-entry checking.
	//
	// Returns:
	//   - uint64: the step counter
	Step() uint64

	// State returns the current frame phase.
	//
	// Returns:
	//   - FrameState: idle, encoding or submitted
	State() FrameState

	// Submissions returns how many command buffers have been handed to the queue.
	//
	// Returns:
	//   - uint64: the submission count
	Submissions() uint64
}

var _ FrameDriver = &frameDriver{}

func (d *frameDriver) Step() uint64 {
	return d.step.Load()
}

func (d *frameDriver) State() FrameState {
	return FrameState(d.state.Load())
}

func (d *frameDriver) Submissions() uint64 {
	return d.submissions.Load()
}

func (d *frameDriver) Advance() error {
	if !d.mu.TryLock() {
		return common.ErrFrameInFlight
	}
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("%w: %s was released", common.ErrInvalidArgument, d.label)
	}
	defer d.state.Store(int32(FrameStateIdle))

	step := d.step.Add(1)
	d.state.Store(int32(FrameStateEncoding))

	texture, acquireErr := d.surface.Acquire()
	if acquireErr != nil {
		if d.simulation != nil {
			// A missed generation leaves the state buffers out of phase with step; fatal, not a skip.
			if simErr := d.submitSimulationOnly(step); simErr != nil {
				return fmt.Errorf("step %d without a drawable (%v): %w", step, acquireErr, simErr)
			}
		}
		return fmt.Errorf("%w: step %d: %v", common.ErrSurfaceUnavailable, step, acquireErr)
	}
	defer texture.Release()

	encoder, err := d.dev.CreateCommandEncoder(d.label)
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", common.ErrAllocation, err)
	}
	defer encoder.Release()

	if d.simulation != nil {
		if err := d.simulation.encode(encoder, step); err != nil {
			return fmt.Errorf("%w: simulation pass: %v", common.ErrAllocation, err)
		}
	}

	pass := encoder.BeginRenderPass(d.label, device.ColorAttachment{
		View:       texture.View(),
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: d.clearColor,
	})
	pass.SetPipeline(d.pipeline.RenderPipeline())
	pass.SetVertexBuffer(0, d.geometry.Buffer())
	if d.bindGroups != nil {
		pass.SetBindGroup(0, d.bindGroups.Select(step).BindGroup())
	}
	pass.Draw(d.geometry.VertexCount(), d.pipeline.Variant().InstanceCount(d.grid), 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("%w: render pass: %v", common.ErrAllocation, err)
	}

	cmd, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("%w: finish: %v", common.ErrAllocation, err)
	}
	defer cmd.Release()

	d.dev.Submit(cmd)
	d.submissions.Add(1)
	d.state.Store(int32(FrameStateSubmitted))

	d.surface.Present()
	if d.logger.DebugEnabled() {
		d.logger.Debugf("%s: step %d submitted (bind group %d)", d.label, step, bind_group_provider.SelectIndex(step))
	}
	return nil
}

// submitSimulationOnly keeps the generation count tied to the step when a frame cannot be drawn.
func (d *frameDriver) submitSimulationOnly(step uint64) error {
	encoder, err := d.dev.CreateCommandEncoder(d.label + " (simulation only)")
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", common.ErrAllocation, err)
	}
	defer encoder.Release()

	if err := d.simulation.encode(encoder, step); err != nil {
		return fmt.Errorf("%w: simulation pass: %v", common.ErrAllocation, err)
	}
	cmd, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("%w: finish: %v", common.ErrAllocation, err)
	}
	defer cmd.Release()

	d.dev.Submit(cmd)
	d.submissions.Add(1)
	d.state.Store(int32(FrameStateSubmitted))
	return nil
}
