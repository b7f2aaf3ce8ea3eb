package window

// WindowBuilderOption configures a window before it is opened.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the title bar text.
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial size in screen coordinates. The maximum size grows to fit it.
//
// Parameters:
//   - width, height: the requested size; non-positive values keep the default
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
			w.limits.maxWidth = max(w.limits.maxWidth, width)
		}
		if height > 0 {
			w.height = height
			w.limits.maxHeight = max(w.limits.maxHeight, height)
		}
	}
}

// WithSizeLimits bounds interactive resizing. A non-positive maximum removes that bound.
//
// Parameters:
//   - minWidth, minHeight: the smallest allowed size
//   - maxWidth, maxHeight: the largest allowed size
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.limits = sizeLimits{minWidth: minWidth, minHeight: minHeight, maxWidth: maxWidth, maxHeight: maxHeight}
	}
}

// WithResizable controls whether the user can resize the window.
func WithResizable(resizable bool) WindowBuilderOption {
	return func(w *engineWindow) {
		w.resizable = resizable
	}
}
