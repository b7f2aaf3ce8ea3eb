package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/profiler"
	"github.com/Carmen-Shannon/cellgrid/engine/window"
)

// Frame is what the engine drives once per tick. renderer.Renderer satisfies it.
type Frame interface {
	// Advance renders the next frame.
	//
	// Returns:
	//   - error: common.ErrSurfaceUnavailable and common.ErrFrameInFlight skip the tick unless the
	//     error also wraps a fatal class such as common.ErrAllocation; anything else stops the engine
	Advance() error

	// Resize reconfigures the drawable for a new window size.
	//
	// Parameters:
	//   - width, height: the framebuffer size in pixels
	//
	// Returns:
	//   - error: an error if the new size was rejected
	Resize(width, height int) error
}

// engine implements the Engine interface.
// Coordinates the tick goroutine and the window message loop.
type engine struct {
	tickRateChannel chan time.Duration
	stepChannel     chan chan struct{}

	running atomic.Bool
	paused  atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	errMu sync.Mutex
	err   error

	window window.Window
	frame  Frame
	logger common.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
}

// Engine is the main entry point for the engine.
// It advances a Frame at a fixed rate and, when a window is attached, runs its message loop.
type Engine interface {
	// Window returns the attached window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called after each tick's frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// Pause stops advancing frames on ticks. SingleStep still advances.
	Pause()

	// Resume continues advancing frames on ticks.
	Resume()

	// TogglePause flips between paused and running.
	//
	// Returns:
	//   - bool: true if the engine is now paused
	TogglePause() bool

	// Paused reports whether ticks are currently skipped.
	//
	// Returns:
	//   - bool: true if paused
	Paused() bool

	// SingleStep advances exactly one frame on the tick goroutine, whether paused or not.
	// Blocks until that frame is done, or returns at once if the engine has quit.
	SingleStep()

	// Run starts the tick loop and blocks until the window closes or Quit is called.
	//
	// Returns:
	//   - error: the error that stopped the engine, nil on a normal shutdown
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// When a window is attached, its resize events are forwarded to the frame.
//
// Parameters:
//   - options: functional options for engine configuration (frame, tick rate, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		stepChannel:     make(chan chan struct{}),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.logger == nil {
		e.logger = common.NewDefaultLogger("engine")
	}
	e.profiler = profiler.NewProfiler(e.logger)

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.frame == nil {
				return
			}
			if err := e.frame.Resize(width, height); err != nil {
				e.logger.Warnf("resize to %dx%d failed: %v", width, height, err)
			}
		})
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				if err := e.window.Close(); err != nil {
					e.logger.Warnf("closing window: %v", err)
				}
			default:
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Run() error {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		// The message loop must stay on the thread that created the window.
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()

	if e.profilingEnabled {
		frames, skipped := e.profiler.Totals()
		e.logger.Infof("stopped after %d frames, %d skipped", frames, skipped)
	}
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick and quit goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine. Exits when the quit channel
// is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("tick goroutine recovered from panic: %v", r)
			e.fail(errors.New("engine: tick goroutine panicked"))
		}
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.paused.Load() {
				continue
			}
			e.tick(dt)
		case done := <-e.stepChannel:
			lastTick = time.Now()
			e.singleStep(done)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// singleStep runs one tick on behalf of SingleStep and releases the waiting caller.
func (e *engine) singleStep(done chan struct{}) {
	defer close(done)
	e.tick(0)
}

// tick advances one frame and classifies its error.
func (e *engine) tick(dt float32) {
	if !e.running.Load() {
		return
	}
	if e.frame != nil {
		err := e.frame.Advance()
		switch {
		case err == nil:
			if e.profilingEnabled {
				e.profiler.Tick()
			}
		case transient(err):
			e.logger.Debugf("skipping frame: %v", err)
			e.profiler.Skip()
		default:
			e.logger.Errorf("frame failed: %v", err)
			e.fail(err)
			return
		}
	}
	if e.tickCallback != nil {
		e.tickCallback(dt)
	}
}

// transient reports whether err only costs this tick. An error that also carries a fatal class
// stops the engine even when it wraps a skip sentinel.
func transient(err error) bool {
	if errors.Is(err, common.ErrAllocation) || errors.Is(err, common.ErrInvalidArgument) ||
		errors.Is(err, common.ErrShaderCompile) || errors.Is(err, common.ErrLayoutMismatch) {
		return false
	}
	return errors.Is(err, common.ErrSurfaceUnavailable) || errors.Is(err, common.ErrFrameInFlight)
}

// fail records the first fatal error and stops the engine.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickDuration(fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace any pending update that the tick loop has not picked up yet.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) Pause() {
	e.paused.Store(true)
}

func (e *engine) Resume() {
	e.paused.Store(false)
}

func (e *engine) TogglePause() bool {
	for {
		old := e.paused.Load()
		if e.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (e *engine) Paused() bool {
	return e.paused.Load()
}

func (e *engine) SingleStep() {
	done := make(chan struct{})
	select {
	case e.stepChannel <- done:
	case <-e.quitChannel:
		return
	}
	<-done
}

// tickDuration converts a tick rate to a ticker period, treating non-positive rates as 60Hz.
func tickDuration(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}
