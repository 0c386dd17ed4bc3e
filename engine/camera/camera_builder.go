package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a function that configures a Camera instance during construction.
type CameraBuilderOption func(*cameraImpl)

// WithLookAt sets the initial eye, target and up vectors.
//
// Parameters:
//   - eye: the eye position
//   - target: the look-at target
//   - up: the up hint vector
//
// Returns:
//   - CameraBuilderOption: a function that applies the pose to a cameraImpl
func WithLookAt(eye, target, up mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position, c.target, c.up = eye, target, up
	}
}

// WithFov sets the vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that applies the fov option to a cameraImpl
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio
//
// Returns:
//   - CameraBuilderOption: a function that applies the aspect option to a cameraImpl
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that applies the near option to a cameraImpl
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that applies the far option to a cameraImpl
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}
