package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the requested window size. The framebuffer may be larger on high-DPI
// displays.
//
// Parameters:
//   - width: width in screen coordinates
//   - height: height in screen coordinates
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
		}
		if height > 0 {
			w.height = height
		}
	}
}
