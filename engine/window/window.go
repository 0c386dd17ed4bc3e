package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a native window that hosts a WebGPU surface and forwards input.
type Window interface {
	// SetFrameCallback sets the function called once per loop iteration.
	SetFrameCallback(callback func())

	// SetResizeCallback sets the function called with the new framebuffer size in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called when a key is pressed or repeats.
	SetKeyCallback(callback func(key common.Key))

	// SurfaceDescriptor returns a platform-appropriate descriptor for creating a WebGPU
	// surface, or nil when the window is closed.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// FrameDim returns the framebuffer width and height in pixels.
	FrameDim() [2]uint32

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Run polls events and calls the frame callback until the window closes.
	Run()

	// Close destroys the window.
	//
	// Returns:
	//   - error: if the window was never opened
	Close() error
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title         string
	width, height int

	// internalWindow holds the platform window (glfwWindow).
	internalWindow any

	onFrame  func()
	onResize func(width, height int)
	onKey    func(key common.Key)
}

var _ Window = &engineWindow{}

// NewWindow opens a window.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:  "oxy shadows",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetFrameCallback(callback func()) {
	w.onFrame = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key common.Key)) {
	w.onKey = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) FrameDim() [2]uint32 {
	return [2]uint32{uint32(w.width), uint32(w.height)}
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Run() {
	for platformProcessMessages(w) {
		if w.onFrame != nil {
			w.onFrame()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

// resized stores a new framebuffer size and notifies the callback. Zero sizes are
// ignored since a minimized window has no drawable area.
func (w *engineWindow) resized(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
