package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the native window the cell grid is presented in.
// All methods must be called from the goroutine that created the window.
type Window interface {
	// SetUpdateCallback sets the function run once per message loop iteration, after events are
	// dispatched.
	//
	// Parameters:
	//   - callback: the function to run, or nil
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function run when the framebuffer size changes.
	//
	// Parameters:
	//   - callback: receives the new framebuffer size in pixels; may be 0x0 while minimised
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the function run for key presses and repeats. Escape is handled by the
	// window itself and closes it.
	//
	// Parameters:
	//   - callback: receives the key code, see common.Key*
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetClickCallback sets the function run for left mouse button presses.
	//
	// Parameters:
	//   - callback: receives the cursor position in framebuffer pixels, origin top left
	SetClickCallback(callback func(x, y float64))

	// SetTitle replaces the title bar text.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns the platform descriptor device.OpenWGPU needs to create a surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: false once the window was closed by the user or by Close
	IsRunning() bool

	// Close destroys the window. Calling it again is a no-op.
	//
	// Returns:
	//   - error: an error if the platform window could not be destroyed
	Close() error

	// ProcessMessages polls events until the window closes.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

type sizeLimits struct {
	minWidth, minHeight int
	maxWidth, maxHeight int
}

type callbacks struct {
	update  func()
	resize  func(width, height int)
	keyDown func(keyCode uint32)
	click   func(x, y float64)
}

// engineWindow implements Window on top of a platform backend.
type engineWindow struct {
	title     string
	width     int
	height    int
	limits    sizeLimits
	resizable bool

	on      callbacks
	backend *glfwBackend
}

var _ Window = &engineWindow{}

// NewWindow opens a window. The calling goroutine is locked to its OS thread and must run
// ProcessMessages.
//
// Parameters:
//   - options: title, size and resize options
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:     "cellgrid",
		width:     1280,
		height:    720,
		limits:    sizeLimits{minWidth: 320, minHeight: 240, maxWidth: 1600, maxHeight: 1200},
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}

	b, err := openGLFW(w)
	if err != nil {
		panic(fmt.Sprintf("window: %v", err))
	}
	w.backend = b
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.on.update = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.on.resize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.on.keyDown = callback
}

func (w *engineWindow) SetClickCallback(callback func(x, y float64)) {
	w.on.click = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if w.backend != nil {
		w.backend.setTitle(title)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.backend == nil {
		return nil
	}
	return w.backend.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.backend != nil && w.backend.open()
}

func (w *engineWindow) Close() error {
	if w.backend == nil {
		return nil
	}
	b := w.backend
	w.backend = nil
	return b.destroy()
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.backend.poll()
		if w.on.update != nil {
			w.on.update()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// framebufferResized records the new size and forwards it.
func (w *engineWindow) framebufferResized(width, height int) {
	w.width, w.height = width, height
	if w.on.resize != nil {
		w.on.resize(width, height)
	}
}
