// Package grid describes the fixed dimensions of a cell grid, the per-cell state patterns uploaded
// to the GPU, and the instance-to-cell arithmetic the cell shaders perform.
package grid

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultSize is the edge length of the square reference grid.
const DefaultSize = 32

// Grid holds immutable grid dimensions. Cell index i maps to column i % Width and row i / Width.
type Grid struct {
	Width  uint32
	Height uint32
}

// New creates a validated Grid.
//
// Parameters:
//   - width: number of columns, must be at least 1
//   - height: number of rows, must be at least 1
//
// Returns:
//   - Grid: the grid
//   - error: wraps common.ErrInvalidArgument when either dimension is zero
func New(width, height uint32) (Grid, error) {
	g := Grid{Width: width, Height: height}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Square creates a validated size x size Grid.
func Square(size uint32) (Grid, error) {
	return New(size, size)
}

// Validate reports whether both dimensions are positive and the cell count fits in 32 bits,
// since instance indices reach the shader as u32.
//
// Returns:
//   - error: wraps common.ErrInvalidArgument on failure
func (g Grid) Validate() error {
	if g.Width == 0 || g.Height == 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", common.ErrInvalidArgument, g.Width, g.Height)
	}
	if uint64(g.Width)*uint64(g.Height) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: grid %dx%d exceeds the 32-bit instance range", common.ErrInvalidArgument, g.Width, g.Height)
	}
	return nil
}

// Cells returns Width*Height.
func (g Grid) Cells() uint32 {
	return g.Width * g.Height
}

// Index returns the linear index of the cell at (col, row).
func (g Grid) Index(col, row uint32) uint32 {
	return row*g.Width + col
}

// Coord returns the column and row of the cell at linear index i.
func (g Grid) Coord(i uint32) (col, row uint32) {
	return i % g.Width, i / g.Width
}

// Uniform returns the grid descriptor uploaded to the uniform buffer: (width, height) as float32.
func (g Grid) Uniform() mgl32.Vec2 {
	return mgl32.Vec2{float32(g.Width), float32(g.Height)}
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}
