package renderer

import "github.com/cogentcore/webgpu/wgpu"

// DefaultFramesInFlight is the number of frames the GPU may still be consuming while
// the CPU records the next one.
const DefaultFramesInFlight = 2

type deviceConfig struct {
	framesInFlight       int
	forceFallbackAdapter bool
	surfaceDescriptor    *wgpu.SurfaceDescriptor
}

// DeviceBuilderOption configures NewWGPUDevice.
type DeviceBuilderOption func(*deviceConfig)

// WithFramesInFlight sets how many submitted frames may overlap CPU recording.
// Staging rings created on the device are sized from this value.
//
// Parameters:
//   - n: frames in flight, must be at least 1
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithFramesInFlight(n int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if n < 1 {
			n = 1
		}
		c.framesInFlight = n
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithSurfaceDescriptor requests an adapter compatible with the given surface.
//
// Parameters:
//   - desc: the surface descriptor, typically from wgpuglfw.GetSurfaceDescriptor
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.surfaceDescriptor = desc
	}
}
