package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CellTransform mirrors the vertex stage of the cell shaders: a local quad position p is placed at
// p*Scale + Offset in clip space. The cell at (col, row) covers the clip rectangle whose bottom left
// corner is (2*col/W - 1, 2*row/H - 1).
type CellTransform struct {
	Offset mgl32.Vec2
	Scale  mgl32.Vec2
}

// Apply maps a local quad vertex into clip space.
func (t CellTransform) Apply(p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{p.X()*t.Scale.X() + t.Offset.X(), p.Y()*t.Scale.Y() + t.Offset.Y()}
}

// Center returns the clip space position of the quad's local origin.
func (t CellTransform) Center() mgl32.Vec2 {
	return t.Offset
}

// Transform returns the clip space transform applied to instance i with the given cell state.
// The shader scales the local position by the state value before projecting, so a dead cell
// collapses to a point at its cell center.
//
// Parameters:
//   - instance: the instance index supplied to the vertex stage
//   - state: the cell state read from the storage buffer, or 1 for variants without one
//
// Returns:
//   - CellTransform: the affine transform for that instance
func (g Grid) Transform(instance uint32, state uint32) CellTransform {
	dims := g.Uniform()
	col, row := g.Coord(instance)
	cell := mgl32.Vec2{float32(col), float32(row)}
	cellOffset := mgl32.Vec2{cell.X() / dims.X() * 2, cell.Y() / dims.Y() * 2}

	s := float32(state)
	inv := mgl32.Vec2{1 / dims.X(), 1 / dims.Y()}
	return CellTransform{
		Offset: mgl32.Vec2{inv.X() - 1 + cellOffset.X(), inv.Y() - 1 + cellOffset.Y()},
		Scale:  mgl32.Vec2{inv.X() * s, inv.Y() * s},
	}
}

// Color returns the fragment colour the position-coloured shader gives instance i.
func (g Grid) Color(instance uint32) mgl32.Vec4 {
	col, row := g.Coord(instance)
	c := mgl32.Vec2{float32(col) / float32(g.Width), float32(row) / float32(g.Height)}
	return mgl32.Vec4{c.X(), c.Y(), 1 - c.X(), 1}
}

// CellAt maps a framebuffer pixel to the cell drawn under it. Pixel (0, 0) is the top left corner;
// grid row 0 is drawn at the bottom of the viewport.
//
// Parameters:
//   - x, y: pixel coordinates inside the viewport
//   - viewWidth, viewHeight: viewport size in pixels
//
// Returns:
//   - uint32: the linear cell index
//   - bool: false when the pixel lies outside the viewport
func (g Grid) CellAt(x, y float64, viewWidth, viewHeight int) (uint32, bool) {
	if viewWidth <= 0 || viewHeight <= 0 || x < 0 || y < 0 || x >= float64(viewWidth) || y >= float64(viewHeight) {
		return 0, false
	}
	u := x / float64(viewWidth)
	v := 1 - y/float64(viewHeight)
	col := min(uint32(math.Floor(u*float64(g.Width))), g.Width-1)
	row := min(uint32(math.Floor(v*float64(g.Height))), g.Height-1)
	return g.Index(col, row), true
}
