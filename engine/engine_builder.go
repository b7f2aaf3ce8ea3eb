package engine

import (
	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickDuration(fps)
	}
}

// WithWindow attaches a window. Run then drives its message loop on the calling goroutine and
// stops when it closes.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithFrame sets the Frame advanced on every tick.
//
// Parameters:
//   - f: the frame source, typically a renderer.Renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrame(f Frame) EngineBuilderOption {
	return func(e *engine) {
		e.frame = f
	}
}

// WithLogger sets the logger used by the engine and its profiler.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger common.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}

// WithPaused starts the engine paused.
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPaused() EngineBuilderOption {
	return func(e *engine) {
		e.paused.Store(true)
	}
}
