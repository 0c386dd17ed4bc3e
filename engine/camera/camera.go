package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	// generation increases on every mutation so observers can detect change without
	// holding a copy of the previous state.
	generation uint64

	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4
}

// Camera defines the perspective camera consumed by the shadow subsystem.
// It holds a look-at pose and perspective settings and keeps its matrices current
// after every setter call.
type Camera interface {
	// Position returns the eye position in world space.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the look-at target
	Target() mgl32.Vec3

	// Up returns the camera's up hint vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Basis returns the orthonormal camera basis: right (U), up (V) and forward (W).
	//
	// Returns:
	//   - u, v, w: the right, up and forward vectors
	Basis() (u, v, w mgl32.Vec3)

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Generation returns a counter that increases on every change to the camera.
	//
	// Returns:
	//   - uint64: the change generation
	Generation() uint64

	// ViewMatrix returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix (WebGPU depth range).
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns the combined projection * view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view-projection matrix
	ViewProjectionMatrix() mgl32.Mat4

	// LookAt sets the eye, target and up vectors in one step.
	//
	// Parameters:
	//   - eye: the eye position
	//   - target: the look-at target
	//   - up: the up hint vector
	LookAt(eye, target, up mgl32.Vec3)

	// SetFov sets the vertical field of view in radians.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// SetNear sets the near plane distance.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far plane distance.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with the provided options.
// Defaults: eye at the origin looking down -Z, +Y up, 45 degree fov, aspect 16:9,
// near 0.1, far 1000.
//
// Parameters:
//   - options: variadic list of CameraBuilderOption functions
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		target: mgl32.Vec3{0, 0, -1},
		up:     mgl32.Vec3{0, 1, 0},
		fov:    float32(math.Pi / 4),
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    1000.0,
	}
	for _, opt := range options {
		opt(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Basis() (u, v, w mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return basis(c.position, c.target, c.up)
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) LookAt(eye, target, up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position, c.target, c.up = eye, target, up
	c.touch()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.touch()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.touch()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.touch()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.touch()
}

// touch bumps the generation and recomputes matrices. Caller holds mu.
func (c *cameraImpl) touch() {
	c.generation++
	c.updateMatrices()
}

// updateMatrices recomputes view, projection and view-projection. Caller holds mu
// or is the constructor.
func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = common.LookAt(c.position, c.target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
}

// basis derives the right/up/forward frame from a look-at pose.
func basis(eye, target, up mgl32.Vec3) (u, v, w mgl32.Vec3) {
	w = target.Sub(eye).Normalize()
	u = w.Cross(up).Normalize()
	v = u.Cross(w)
	return u, v, w
}
