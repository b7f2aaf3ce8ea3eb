package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwBackend owns the GLFW window of an engineWindow.
type glfwBackend struct {
	win    *glfw.Window
	closed bool
}

// openGLFW initialises GLFW and creates a window without a client API; WebGPU renders through its
// own surface.
func openGLFW(w *engineWindow) (*glfwBackend, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialising GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(w.resizable))
	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	l := w.limits
	win.SetSizeLimits(l.minWidth, l.minHeight, glfwLimit(l.maxWidth), glfwLimit(l.maxHeight))

	b := &glfwBackend{win: win}
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Release {
			return
		}
		if key == glfw.KeyEscape {
			win.SetShouldClose(true)
			return
		}
		if w.on.keyDown != nil {
			w.on.keyDown(uint32(key))
		}
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press || w.on.click == nil {
			return
		}
		w.on.click(b.cursorInFramebuffer())
	})
	// Framebuffer size, not window size: they differ on high-DPI displays and the surface is
	// configured in pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.framebufferResized(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	return b, nil
}

// cursorInFramebuffer converts the cursor position from screen coordinates to framebuffer pixels.
func (b *glfwBackend) cursorInFramebuffer() (float64, float64) {
	x, y := b.win.GetCursorPos()
	ww, wh := b.win.GetSize()
	fw, fh := b.win.GetFramebufferSize()
	if ww > 0 && wh > 0 {
		x *= float64(fw) / float64(ww)
		y *= float64(fh) / float64(wh)
	}
	return x, y
}

func (b *glfwBackend) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(b.win)
}

func (b *glfwBackend) open() bool {
	return !b.closed && !b.win.ShouldClose()
}

func (b *glfwBackend) poll() {
	glfw.PollEvents()
}

func (b *glfwBackend) setTitle(title string) {
	b.win.SetTitle(title)
}

func (b *glfwBackend) destroy() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.win.Destroy()
	glfw.Terminate()
	return nil
}

func glfwBool(v bool) int {
	if v {
		return glfw.True
	}
	return glfw.False
}

// glfwLimit maps a non-positive limit to "no limit".
func glfwLimit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}
