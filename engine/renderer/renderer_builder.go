package renderer

import (
	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithVariant selects the pipeline variant. The default is pipeline.VariantState.
//
// Parameters:
//   - v: the variant to draw
//
// Returns:
//   - RendererBuilderOption: a function that applies the variant option to a renderer
func WithVariant(v pipeline.Variant) RendererBuilderOption {
	return func(r *renderer) {
		r.variant = v
	}
}

// WithPatterns sets the initial cell states, state A first. Each pattern must hold exactly one
// entry per grid cell. Without this option A is every third cell alive and B a checkerboard.
//
// Parameters:
//   - patterns: one or two patterns
//
// Returns:
//   - RendererBuilderOption: a function that applies the patterns option to a renderer
func WithPatterns(patterns ...grid.Pattern) RendererBuilderOption {
	return func(r *renderer) {
		r.patterns = patterns
	}
}

// WithShaderSource replaces the bundled WGSL program of the variant. The source must hold both
// the vertex and the fragment entry point.
//
// Parameters:
//   - src: the WGSL source text
//
// Returns:
//   - RendererBuilderOption: a function that applies the shader source option to a renderer
func WithShaderSource(src string) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderSource = src
	}
}

// WithEntryPoints overrides the vertex and fragment entry point names, vertexMain and
// fragmentMain by default. Empty names keep the defaults.
//
// Parameters:
//   - vertex: the vertex entry point
//   - fragment: the fragment entry point
//
// Returns:
//   - RendererBuilderOption: a function that applies the entry point option to a renderer
func WithEntryPoints(vertex, fragment string) RendererBuilderOption {
	return func(r *renderer) {
		r.vertexEntry = common.Coalesce(vertex, r.vertexEntry)
		r.fragmentEntry = common.Coalesce(fragment, r.fragmentEntry)
	}
}

// WithVertices replaces the quad drawn for every cell.
//
// Parameters:
//   - vertices: the triangle list, in the cell's local [-1, 1] space
//
// Returns:
//   - RendererBuilderOption: a function that applies the vertices option to a renderer
func WithVertices(vertices []mgl32.Vec2) RendererBuilderOption {
	return func(r *renderer) {
		r.vertices = vertices
	}
}

// WithClearColor sets the background colour the render pass clears to.
//
// Parameters:
//   - c: the clear colour
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear colour option to a renderer
func WithClearColor(c wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithColorFormat requests a colour format instead of the surface's preferred one.
//
// Parameters:
//   - format: the colour format
//
// Returns:
//   - RendererBuilderOption: a function that applies the colour format option to a renderer
func WithColorFormat(format wgpu.TextureFormat) RendererBuilderOption {
	return func(r *renderer) {
		r.requestedFormat = format
	}
}

// WithSimulation enables the compute stage that advances the cells one generation per frame.
// An empty source uses the bundled Conway rule. Requires pipeline.VariantState.
//
// Parameters:
//   - src: the WGSL compute source, or "" for the default
//
// Returns:
//   - RendererBuilderOption: a function that applies the simulation option to a renderer
func WithSimulation(src string) RendererBuilderOption {
	return func(r *renderer) {
		r.simulate = true
		r.simulationSource = src
	}
}

// WithLogger sets the logger. The default writes to stderr with the "renderer" prefix.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger common.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = logger
	}
}

// WithLabel sets the label prefix of the renderer's command encoders and log lines.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		if label != "" {
			r.label = label
		}
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithSurfaceSize configures the surface during NewRenderer. Without it the caller is expected
// to call Resize before the first Advance.
//
// Parameters:
//   - width, height: the drawable size in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface size option to a renderer
func WithSurfaceSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.width, r.height = width, height
	}
}
