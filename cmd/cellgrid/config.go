package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/colornames"
)

// Config is the demo configuration. Values come from NewConfig, then an optional TOML file, then
// command line flags, each overriding the previous.
type Config struct {
	Window WindowConfig `toml:"window"`
	Grid   GridConfig   `toml:"grid"`
	Render RenderConfig `toml:"render"`
	Engine EngineConfig `toml:"engine"`

	// ConfigPath is the TOML file the config was loaded from. Set by the -config flag only.
	ConfigPath string `toml:"-"`
}

// WindowConfig sizes the window.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// GridConfig describes the grid and its initial state.
type GridConfig struct {
	Width    uint32 `toml:"width"`
	Height   uint32 `toml:"height"`
	PatternA string `toml:"pattern_a"`
	PatternB string `toml:"pattern_b"`
	Seed     uint64 `toml:"seed"`
}

// RenderConfig selects the pipeline and presentation settings.
type RenderConfig struct {
	Variant          string `toml:"variant"`
	ClearColor       string `toml:"clear_color"`
	PresentMode      string `toml:"present_mode"`
	Shader           string `toml:"shader"`
	Simulate         bool   `toml:"simulate"`
	SimulationShader string `toml:"simulation_shader"`
	ForceSoftware    bool   `toml:"force_software"`
}

// EngineConfig controls the tick loop and diagnostics.
type EngineConfig struct {
	TickRate  float64 `toml:"tick_rate"`
	Paused    bool    `toml:"paused"`
	Profiling bool    `toml:"profiling"`
	Debug     bool    `toml:"debug"`
}

// NewConfig returns the reference configuration: a 32x32 grid in a 1280x720 window, every third
// cell alive in state A and a checkerboard in state B, alternating at 5 ticks per second.
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{Title: "cellgrid", Width: 1280, Height: 720},
		Grid: GridConfig{
			Width:    grid.DefaultSize,
			Height:   grid.DefaultSize,
			PatternA: "every-third",
			PatternB: "checkerboard",
			Seed:     1,
		},
		Render: RenderConfig{
			Variant:     pipeline.VariantState.Name,
			ClearColor:  "default",
			PresentMode: renderer.PresentModeVSync.String(),
		},
		Engine: EngineConfig{TickRate: 5},
	}
}

// Load builds a Config from the command line. A -config file is applied first so that every other
// flag overrides it.
//
// Parameters:
//   - args: the command line arguments without the program name
//
// Returns:
//   - *Config: the validated config
//   - error: a flag, file or validation error; flag.ErrHelp when -h was given
func Load(args []string) (*Config, error) {
	pre := NewConfig()
	if err := pre.flagSet(flag.ContinueOnError).Parse(args); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if pre.ConfigPath != "" {
		if err := cfg.LoadFile(pre.ConfigPath); err != nil {
			return nil, err
		}
	}
	fs := cfg.flagSet(flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a TOML file into c. Keys absent from the file keep their current values;
// unknown keys are an error.
//
// Parameters:
//   - path: the TOML file path
//
// Returns:
//   - error: an error if the file cannot be read or decoded
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config: %s: %s", path, strict.String())
		}
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// Bind registers one flag per config field on fs, defaulting to the current values.
//
// Parameters:
//   - fs: the flag set to register on
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "TOML config file")

	fs.StringVar(&c.Window.Title, "title", c.Window.Title, "window title")
	fs.IntVar(&c.Window.Width, "window-width", c.Window.Width, "window width in pixels")
	fs.IntVar(&c.Window.Height, "window-height", c.Window.Height, "window height in pixels")

	fs.Func("grid-width", "grid columns", uintSetter(&c.Grid.Width))
	fs.Func("grid-height", "grid rows", uintSetter(&c.Grid.Height))
	fs.StringVar(&c.Grid.PatternA, "pattern-a", c.Grid.PatternA, "initial pattern of state A (every-third, checkerboard, alive, empty, glider, random)")
	fs.StringVar(&c.Grid.PatternB, "pattern-b", c.Grid.PatternB, "initial pattern of state B, empty string for a single state buffer")
	fs.Uint64Var(&c.Grid.Seed, "seed", c.Grid.Seed, "seed of the random pattern")

	fs.StringVar(&c.Render.Variant, "variant", c.Render.Variant, "pipeline variant (quad, grid, state)")
	fs.StringVar(&c.Render.ClearColor, "clear-color", c.Render.ClearColor, "background colour name (SVG 1.1 names)")
	fs.StringVar(&c.Render.PresentMode, "present-mode", c.Render.PresentMode, "vsync or uncapped")
	fs.StringVar(&c.Render.Shader, "shader", c.Render.Shader, "WGSL file replacing the bundled cell shader")
	fs.BoolVar(&c.Render.Simulate, "simulate", c.Render.Simulate, "advance the cells with Conway's rule on the GPU")
	fs.StringVar(&c.Render.SimulationShader, "simulation-shader", c.Render.SimulationShader, "WGSL file replacing the bundled simulation shader")
	fs.BoolVar(&c.Render.ForceSoftware, "software", c.Render.ForceSoftware, "force a software adapter")

	fs.Float64Var(&c.Engine.TickRate, "tick-rate", c.Engine.TickRate, "frames per second")
	fs.BoolVar(&c.Engine.Paused, "paused", c.Engine.Paused, "start paused")
	fs.BoolVar(&c.Engine.Profiling, "profile", c.Engine.Profiling, "log frame statistics every second")
	fs.BoolVar(&c.Engine.Debug, "debug", c.Engine.Debug, "enable debug logging")
}

func (c *Config) flagSet(handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet("cellgrid", handling)
	c.Bind(fs)
	return fs
}

// Validate checks every field that would otherwise fail later during renderer construction.
//
// Returns:
//   - error: the first invalid field
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("config: window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := c.GridSize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Seeders(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := pipeline.ParseVariant(c.Render.Variant); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := renderer.ParsePresentMode(c.Render.PresentMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.ClearColorValue(); err != nil {
		return err
	}
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("config: tick rate must be positive, got %g", c.Engine.TickRate)
	}
	if c.Render.Simulate && c.Render.Variant != pipeline.VariantState.Name {
		return fmt.Errorf("config: simulate needs the %q variant", pipeline.VariantState.Name)
	}
	return nil
}

// GridSize returns the configured grid.
func (c *Config) GridSize() (grid.Grid, error) {
	return grid.New(c.Grid.Width, c.Grid.Height)
}

// Seeders resolves the configured pattern names. An empty PatternB yields a single seeder.
//
// Returns:
//   - []grid.Seeder: one or two seeders, A first
//   - error: an error for unknown pattern names
func (c *Config) Seeders() ([]grid.Seeder, error) {
	a, err := grid.ParseSeeder(c.Grid.PatternA, c.Grid.Seed)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Grid.PatternB) == "" {
		return []grid.Seeder{a}, nil
	}
	b, err := grid.ParseSeeder(c.Grid.PatternB, c.Grid.Seed+1)
	if err != nil {
		return nil, err
	}
	return []grid.Seeder{a, b}, nil
}

// ClearColorValue resolves the clear colour name. "default" is the renderer's dark blue.
//
// Returns:
//   - wgpu.Color: the colour with components in [0, 1]
//   - error: an error for unknown names
func (c *Config) ClearColorValue() (wgpu.Color, error) {
	name := strings.ToLower(strings.TrimSpace(c.Render.ClearColor))
	if name == "" || name == "default" {
		return renderer.DefaultClearColor, nil
	}
	rgba, ok := colornames.Map[name]
	if !ok {
		return wgpu.Color{}, fmt.Errorf("config: unknown clear colour %q", c.Render.ClearColor)
	}
	return wgpu.Color{
		R: float64(rgba.R) / 255,
		G: float64(rgba.G) / 255,
		B: float64(rgba.B) / 255,
		A: float64(rgba.A) / 255,
	}, nil
}

func uintSetter(dst *uint32) func(string) error {
	return func(s string) error {
		var v uint32
		if _, err := fmt.Sscan(s, &v); err != nil {
			return fmt.Errorf("invalid value %q", s)
		}
		*dst = v
		return nil
	}
}
