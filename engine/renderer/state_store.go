package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Labels of the grid state store buffers.
const (
	UniformLabel = "Grid Uniforms"
	StateLabelA  = "Cell State A"
	StateLabelB  = "Cell State B"
)

// uniformSize is the byte size of the grid uniform, one vec2f.
const uniformSize = 8

// gridStateStore is the implementation of the GridStateStore interface.
type gridStateStore struct {
	grid    grid.Grid
	uniform device.Buffer
	states  []device.Buffer
}

// GridStateStore owns the grid uniform buffer and the one or two cell state buffers the cell
// pipeline reads. Everything is allocated and uploaded once, at construction.
type GridStateStore interface {
	// Grid returns the dimensions the store was built for.
	//
	// Returns:
	//   - grid.Grid: the grid
	Grid() grid.Grid

	// Uniform returns the 8 byte buffer holding (width, height) as float32.
	//
	// Returns:
	//   - device.Buffer: the uniform buffer
	Uniform() device.Buffer

	// States returns the state buffers, A first.
	//
	// Returns:
	//   - []device.Buffer: one or two buffers of Cells()*4 bytes
	States() []device.Buffer

	// Release frees every buffer of the store.
	Release()
}

var _ GridStateStore = &gridStateStore{}

// ValidatePatterns checks a set of state patterns against a grid without touching the GPU.
//
// Parameters:
//   - g: the grid
//   - patterns: one or two patterns of exactly g.Cells() entries
//
// Returns:
//   - error: wraps common.ErrInvalidArgument
func ValidatePatterns(g grid.Grid, patterns []grid.Pattern) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if len(patterns) < 1 || len(patterns) > 2 {
		return fmt.Errorf("%w: expected 1 or 2 state patterns, got %d", common.ErrInvalidArgument, len(patterns))
	}
	for i, p := range patterns {
		if err := g.ValidatePattern(p); err != nil {
			return fmt.Errorf("state %s: %w", stateSuffix(i), err)
		}
	}
	return nil
}

// NewGridStateStore allocates the grid uniform and one state buffer per pattern, then uploads
// them. Inputs are validated before the first allocation; on any later failure every buffer
// already allocated is released.
//
// Parameters:
//   - dev: the device to allocate on
//   - g: the grid dimensions
//   - patterns: one or two patterns of exactly g.Cells() entries
//
// Returns:
//   - GridStateStore: the populated store
//   - error: common.ErrInvalidArgument for bad inputs, common.ErrAllocation for device failures
//     or sizes beyond the device limits
func NewGridStateStore(dev device.Device, g grid.Grid, patterns ...grid.Pattern) (GridStateStore, error) {
	if err := ValidatePatterns(g, patterns); err != nil {
		return nil, err
	}

	stateSize := uint64(g.Cells()) * 4
	limits := dev.Limits()
	if limits.MaxStorageBufferBindingSize > 0 && stateSize > limits.MaxStorageBufferBindingSize {
		return nil, fmt.Errorf("%w: grid %s needs %d byte state buffers, storage bindings are limited to %d", common.ErrAllocation, g, stateSize, limits.MaxStorageBufferBindingSize)
	}
	if limits.MaxBufferSize > 0 && stateSize > limits.MaxBufferSize {
		return nil, fmt.Errorf("%w: grid %s needs %d byte state buffers, buffers are limited to %d", common.ErrAllocation, g, stateSize, limits.MaxBufferSize)
	}

	s := &gridStateStore{grid: g}
	fail := func(err error) (GridStateStore, error) {
		s.Release()
		return nil, err
	}

	uniform, err := createBuffer(dev, UniformLabel, uniformSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	if err != nil {
		return fail(err)
	}
	s.uniform = uniform

	for i := range patterns {
		buf, err := createBuffer(dev, stateLabel(i), stateSize, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
		if err != nil {
			return fail(err)
		}
		s.states = append(s.states, buf)
	}

	writes := []bind_group_provider.BufferWrite{
		{Buffer: s.uniform, Data: common.SliceToBytes([]mgl32.Vec2{g.Uniform()})},
	}
	for i, p := range patterns {
		writes = append(writes, bind_group_provider.BufferWrite{Buffer: s.states[i], Data: p.Bytes()})
	}
	if err := bind_group_provider.WriteBuffers(dev, writes); err != nil {
		return fail(err)
	}
	return s, nil
}

func createBuffer(dev device.Device, label string, size uint64, usage wgpu.BufferUsage) (device.Buffer, error) {
	buf, err := dev.CreateBuffer(device.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%d bytes): %v", common.ErrAllocation, label, size, err)
	}
	return buf, nil
}

func (s *gridStateStore) Grid() grid.Grid {
	return s.grid
}

func (s *gridStateStore) Uniform() device.Buffer {
	return s.uniform
}

func (s *gridStateStore) States() []device.Buffer {
	return s.states
}

func (s *gridStateStore) Release() {
	if s.uniform != nil {
		s.uniform.Release()
		s.uniform = nil
	}
	for _, b := range s.states {
		b.Release()
	}
	s.states = nil
}

func stateSuffix(i int) string {
	if i == 0 {
		return "A"
	}
	return "B"
}

func stateLabel(i int) string {
	if i == 0 {
		return StateLabelA
	}
	return StateLabelB
}
