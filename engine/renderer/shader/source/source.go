// Package source embeds the WGSL programs shipped with the renderer.
package source

import _ "embed"

var (
	// Cell is the instanced, state-driven cell shader (uniform grid at binding 0, state array at binding 1).
	//
	//go:embed cell.wgsl
	Cell string

	// Grid is the instanced shader that reads only the grid uniform.
	//
	//go:embed grid.wgsl
	Grid string

	// Quad draws the bare quad with no bindings and no instancing.
	//
	//go:embed quad.wgsl
	Quad string

	// Life advances the cell state by one generation in a compute pass.
	//
	//go:embed life.wgsl
	Life string
)
