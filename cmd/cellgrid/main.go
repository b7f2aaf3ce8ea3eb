// Command cellgrid opens a window and draws a cell grid whose state buffers alternate, or evolve
// under Conway's rule with -simulate, once per tick.
//
// Keys: space pauses, N advances one frame while paused, Q or Escape quits. A left click logs the
// cell under the cursor.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine"
	"github.com/Carmen-Shannon/cellgrid/engine/grid"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/device"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader"
	"github.com/Carmen-Shannon/cellgrid/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

func main() {
	cfg, err := Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := common.NewDefaultLogger("cellgrid")
	logger.SetDebug(cfg.Engine.Debug)
	if err := run(cfg, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger common.Logger) error {
	g, err := cfg.GridSize()
	if err != nil {
		return err
	}
	opts, patterns, err := rendererOptions(cfg, g, logger)
	if err != nil {
		return err
	}

	w := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	defer w.Close()

	dev, surface, err := device.OpenWGPU(w.SurfaceDescriptor(), device.Options{
		Label:                "cellgrid",
		ForceFallbackAdapter: cfg.Render.ForceSoftware,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	defer dev.Release()
	defer surface.Release()

	opts = append(opts, renderer.WithSurfaceSize(uint32(w.Width()), uint32(w.Height())))
	r, err := renderer.NewRenderer(dev, surface, g, opts...)
	if err != nil {
		return err
	}
	defer r.Release()

	engineOpts := []engine.EngineBuilderOption{
		engine.WithWindow(w),
		engine.WithFrame(r),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithProfiling(cfg.Engine.Profiling),
		engine.WithLogger(logger),
	}
	if cfg.Engine.Paused {
		engineOpts = append(engineOpts, engine.WithPaused())
	}
	e := engine.NewEngine(engineOpts...)
	bindInput(cfg, w, e, r, patterns[0], logger)

	return e.Run()
}

// rendererOptions translates the config into renderer options and the seeded patterns.
func rendererOptions(cfg *Config, g grid.Grid, logger common.Logger) ([]renderer.RendererBuilderOption, []grid.Pattern, error) {
	variant, err := pipeline.ParseVariant(cfg.Render.Variant)
	if err != nil {
		return nil, nil, err
	}
	mode, err := renderer.ParsePresentMode(cfg.Render.PresentMode)
	if err != nil {
		return nil, nil, err
	}
	clearColor, err := cfg.ClearColorValue()
	if err != nil {
		return nil, nil, err
	}
	seeders, err := cfg.Seeders()
	if err != nil {
		return nil, nil, err
	}

	patterns := make([]grid.Pattern, len(seeders))
	for i, seed := range seeders {
		patterns[i] = grid.Fill(g, seed)
	}
	logger.Infof("grid %s: %d live cells in state A", g, patterns[0].LiveCount())

	opts := []renderer.RendererBuilderOption{
		renderer.WithVariant(variant),
		renderer.WithPresentMode(mode),
		renderer.WithClearColor(clearColor),
		renderer.WithPatterns(patterns...),
		renderer.WithLogger(logger),
	}
	if cfg.Render.Shader != "" {
		s, err := shader.NewShaderFromPath(cfg.Render.Shader, shader.ShaderTypeVertex, cfg.Render.Shader)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, renderer.WithShaderSource(s.Source()))
	}
	if cfg.Render.Simulate {
		var src string
		if cfg.Render.SimulationShader != "" {
			s, err := shader.NewShaderFromPath(cfg.Render.SimulationShader, shader.ShaderTypeCompute, cfg.Render.SimulationShader)
			if err != nil {
				return nil, nil, err
			}
			src = s.Source()
		}
		opts = append(opts, renderer.WithSimulation(src))
	}
	return opts, patterns, nil
}

// bindInput wires the keyboard and mouse to the engine.
func bindInput(cfg *Config, w window.Window, e engine.Engine, r renderer.Renderer, initial grid.Pattern, logger common.Logger) {
	setTitle := func(paused bool) {
		if paused {
			w.SetTitle(cfg.Window.Title + " (paused)")
			return
		}
		w.SetTitle(cfg.Window.Title)
	}
	setTitle(e.Paused())

	w.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeySpace:
			setTitle(e.TogglePause())
		case common.KeyN:
			if e.Paused() {
				e.SingleStep()
				logger.Debugf("stepped to %d", r.Step())
			}
		case common.KeyQ:
			e.Quit()
		}
	})

	g := r.Grid()
	w.SetClickCallback(func(x, y float64) {
		idx, ok := g.CellAt(x, y, w.Width(), w.Height())
		if !ok {
			return
		}
		col, row := g.Coord(idx)
		logger.Infof("cell %d (column %d, row %d) at step %d, initially %s", idx, col, row, r.Step(), cellState(initial[idx]))
	})
}

func cellState(v uint32) string {
	if v != 0 {
		return "alive"
	}
	return "dead"
}
