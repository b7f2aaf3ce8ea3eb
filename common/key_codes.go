package common

// Virtual key codes delivered to window key callbacks. Escape never reaches a callback; the
// window closes itself on it.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace = 32 // Spacebar (ASCII), toggles pause
	KeyN     = 78 // N key (ASCII), advances one frame while paused
	KeyQ     = 81 // Q key (ASCII), quits
)
