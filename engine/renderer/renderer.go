package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader/source"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Labels and entry points of the cell pipeline.
const (
	DefaultLabel         = "Cell renderer"
	ShaderLabel          = "Cell shader"
	PipelineLabel        = "Cell pipeline"
	DefaultVertexEntry   = "vertexMain"
	DefaultFragmentEntry = "fragmentMain"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	*frameDriver

	id      uuid.UUID
	variant pipeline.Variant

	// Config collected from builder options, consumed by NewRenderer.
	patterns         []grid.Pattern
	shaderSource     string
	vertexEntry      string
	fragmentEntry    string
	vertices         []mgl32.Vec2
	requestedFormat  wgpu.TextureFormat
	presentMode      PresentMode
	width, height    uint32
	simulate         bool
	simulationSource string

	format wgpu.TextureFormat
	store  GridStateStore
}

// Renderer draws a cell grid with one instanced draw per frame. It owns every GPU resource it
// creates: the vertex buffer, the grid uniform, the state buffers, the pipelines and the bind
// groups. The device and the surface stay owned by the caller.
//
// All resources are created by NewRenderer. Each Advance selects the bind group for the new step
// and never allocates.
type Renderer interface {
	FrameDriver

	// Resize reconfigures the surface for a new drawable size. A zero width or height, as reported
	// for a minimized window, is ignored.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: wraps common.ErrConfiguration if the surface rejects the size
	Resize(width, height int) error

	// Grid returns the grid the renderer was built for.
	//
	// Returns:
	//   - grid.Grid: the grid dimensions
	Grid() grid.Grid

	// Variant returns the pipeline variant being drawn.
	//
	// Returns:
	//   - pipeline.Variant: the variant
	Variant() pipeline.Variant

	// Format returns the colour format the surface and the pipeline were configured with.
	//
	// Returns:
	//   - wgpu.TextureFormat: the resolved colour format
	Format() wgpu.TextureFormat

	// ID returns the unique identifier tagging this renderer's encoders and log lines.
	//
	// Returns:
	//   - uuid.UUID: the renderer ID
	ID() uuid.UUID

	// Pipeline retrieves a registered pipeline by key, PipelineLabel for the cell pipeline and
	// SimulationLabel for the simulation pipeline. Returns nil for unknown keys.
	//
	// Parameters:
	//   - key: the pipeline key
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline, or nil
	Pipeline(key string) pipeline.Pipeline

	// Release frees every GPU resource owned by the renderer. Safe to call more than once.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer validates the configuration and creates every GPU resource the renderer needs.
// Checks run in order, each before any allocation: the colour format, then the grid and
// patterns, then the shaders. If any allocation fails, everything created so far is released.
//
// Parameters:
//   - dev: the opened device
//   - surface: the presentation surface
//   - g: the grid dimensions
//   - opts: functional options configuring the renderer
//
// Returns:
//   - Renderer: the ready renderer, at step 0 in the idle state
//   - error: wraps common.ErrConfiguration, common.ErrInvalidArgument, common.ErrShaderCompile,
//     common.ErrLayoutMismatch or common.ErrAllocation
func NewRenderer(dev device.Device, surface device.Surface, g grid.Grid, opts ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		id:            uuid.New(),
		variant:       pipeline.VariantState,
		vertexEntry:   DefaultVertexEntry,
		fragmentEntry: DefaultFragmentEntry,
		presentMode:   PresentModeVSync,
		frameDriver: &frameDriver{
			dev:        dev,
			surface:    surface,
			grid:       g,
			clearColor: DefaultClearColor,
			label:      DefaultLabel,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = common.NewDefaultLogger("renderer")
	}
	r.frameDriver.label = fmt.Sprintf("%s [%s]", r.frameDriver.label, r.id.String()[:8])

	format, err := resolveColorFormat(r.requestedFormat, surface.Formats())
	if err != nil {
		return nil, err
	}
	r.format = format
	if r.simulate && r.variant != pipeline.VariantState {
		return nil, fmt.Errorf("%w: simulation needs the %s variant, got %s", common.ErrConfiguration, pipeline.VariantState, r.variant)
	}

	patterns, err := r.resolvePatterns(g)
	if err != nil {
		return nil, err
	}

	p, simShader, err := r.buildPipeline()
	if err != nil {
		return nil, err
	}
	r.pipeline = p

	if err := r.allocate(patterns, simShader); err != nil {
		r.Release()
		return nil, err
	}

	r.logger.Infof("%s: %s grid, %s variant, format %v, simulation %t", r.frameDriver.label, g, r.variant, r.format, r.simulation != nil)
	return r, nil
}

// resolvePatterns fills in the default patterns and checks them against the grid.
func (r *renderer) resolvePatterns(g grid.Grid) ([]grid.Pattern, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	patterns := r.patterns
	if len(patterns) == 0 {
		patterns = []grid.Pattern{grid.Fill(g, grid.EveryNth(3)), grid.Fill(g, grid.Checkerboard())}
	}
	if err := ValidatePatterns(g, patterns); err != nil {
		return nil, err
	}
	if r.simulate && len(patterns) == 1 {
		patterns = append(patterns, grid.Fill(g, grid.Empty()))
	}
	return patterns, nil
}

// buildPipeline reflects the shaders and validates the cell pipeline without touching the device.
func (r *renderer) buildPipeline() (pipeline.Pipeline, shader.Shader, error) {
	src := r.shaderSource
	if src == "" {
		src = defaultShaderSource(r.variant)
	}

	vs, err := shader.NewShader(ShaderLabel+" (vertex)", shader.ShaderTypeVertex, src, shader.WithEntryPoint(r.vertexEntry), shader.WithLabel(ShaderLabel))
	if err != nil {
		return nil, nil, err
	}
	fs, err := shader.NewShader(ShaderLabel+" (fragment)", shader.ShaderTypeFragment, src, shader.WithEntryPoint(r.fragmentEntry), shader.WithLabel(ShaderLabel))
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.NewPipeline(PipelineLabel, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithVariant(r.variant),
	)
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkVertexInputs(vs, VertexLayout()); err != nil {
		return nil, nil, err
	}

	if !r.simulate {
		return p, nil, nil
	}
	simSrc := r.simulationSource
	if simSrc == "" {
		simSrc = source.Life
	}
	cs, err := shader.NewShader(SimulationLabel, shader.ShaderTypeCompute, simSrc)
	if err != nil {
		return nil, nil, err
	}
	if err := checkSimulationBindings(cs); err != nil {
		return nil, nil, err
	}
	return p, cs, nil
}

// allocate creates the GPU resources in dependency order. The caller releases on failure.
func (r *renderer) allocate(patterns []grid.Pattern, simShader shader.Shader) error {
	if r.width > 0 && r.height > 0 {
		if err := r.surface.Configure(r.format, r.width, r.height, r.presentMode.wgpu()); err != nil {
			return fmt.Errorf("%w: surface %dx%d: %v", common.ErrConfiguration, r.width, r.height, err)
		}
	}

	vertices := r.vertices
	if len(vertices) == 0 {
		vertices = QuadVertices(DefaultQuadExtent)
	}
	geom, err := NewGeometry(r.dev, GeometryLabel, vertices)
	if err != nil {
		return err
	}
	r.geometry = geom

	if r.variant.HasBindings() {
		store, err := NewGridStateStore(r.dev, r.grid, patterns...)
		if err != nil {
			return err
		}
		r.store = store
	}

	if err := registerRenderPipeline(r.dev, r.pipeline, r.geometry.Layout(), r.format); err != nil {
		return err
	}

	if r.variant.HasBindings() {
		var states []device.Buffer
		if r.variant.UsesStorageBinding {
			states = r.store.States()
		}
		pair, err := bind_group_provider.NewBindGroupPair(r.dev, r.pipeline, r.store.Uniform(), states)
		if err != nil {
			return err
		}
		r.bindGroups = pair
	}

	if simShader != nil {
		sim, err := newSimulation(r.dev, simShader, r.grid, r.store)
		if err != nil {
			return err
		}
		r.simulation = sim
	}
	return nil
}

// defaultShaderSource returns the bundled WGSL program for a variant.
func defaultShaderSource(v pipeline.Variant) string {
	switch {
	case v.UsesStorageBinding:
		return source.Cell
	case v.Instanced:
		return source.Grid
	default:
		return source.Quad
	}
}

func (r *renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		r.logger.Debugf("%s: ignoring resize to %dx%d", r.frameDriver.label, width, height)
		return nil
	}

	// Wait for any frame in flight; the surface must not be reconfigured while a drawable is held.
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.surface.Configure(r.format, uint32(width), uint32(height), r.presentMode.wgpu()); err != nil {
		return fmt.Errorf("%w: surface %dx%d: %v", common.ErrConfiguration, width, height, err)
	}
	r.width, r.height = uint32(width), uint32(height)
	return nil
}

func (r *renderer) Grid() grid.Grid {
	return r.grid
}

func (r *renderer) Variant() pipeline.Variant {
	return r.variant
}

func (r *renderer) Format() wgpu.TextureFormat {
	return r.format
}

func (r *renderer) ID() uuid.UUID {
	return r.id
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	switch {
	case r.pipeline != nil && key == r.pipeline.PipelineKey():
		return r.pipeline
	case r.simulation != nil && key == r.simulation.pipeline.PipelineKey():
		return r.simulation.pipeline
	default:
		return nil
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	if r.simulation != nil {
		r.simulation.release()
	}
	if r.bindGroups != nil {
		r.bindGroups.Release()
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.store != nil {
		r.store.Release()
	}
	if r.geometry != nil {
		r.geometry.Release()
	}
}
