// Package culling tests bounding boxes against a view frustum and keeps cached GPU
// indirect-draw buffers holding the surviving draw arguments.
package culling

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// SourceID identifies the draw-argument list a draw buffer is filled from.
type SourceID uint32

// drawBufferSet is the cached GPU state for one source.
type drawBufferSet struct {
	buffer   renderer.Buffer
	ring     *renderer.StagingRing
	capacity int
	count    int
	valid    bool
}

// frustumCulling is the implementation of the FrustumCulling interface.
type frustumCulling struct {
	device  renderer.Device
	label   string
	frustum common.Frustum

	drawBuffers map[SourceID]*drawBufferSet
	ringDepth   int
}

// FrustumCulling owns a frustum and the indirect draw buffers filled from the draws
// that survive it. Every frustum update invalidates the cached draw buffers.
type FrustumCulling interface {
	// CreateFrustum rebuilds the frustum from a perspective camera basis.
	//
	// Parameters:
	//   - pos: the eye position
	//   - right, up, forward: the normalized camera basis
	//   - aspect: width over height
	//   - fovY: vertical field of view in radians
	//   - near, far: clip distances
	CreateFrustum(pos, right, up, forward mgl32.Vec3, aspect, fovY, near, far float32)

	// CreateOrthoFrustum rebuilds the frustum as a box from an orthographic camera basis.
	CreateOrthoFrustum(pos, right, up, forward mgl32.Vec3, left, rightExt, bottom, top, near, far float32)

	// UpdateFromCamera rebuilds the frustum from cam's basis and projection.
	UpdateFromCamera(cam camera.Camera)

	// UpdateLookAt rebuilds a perspective frustum for a view looking from eye at center.
	UpdateLookAt(eye, center, up mgl32.Vec3, aspect, fovY, near, far float32)

	// UpdateLookAtOrtho rebuilds an orthographic frustum for a view looking from eye at center.
	UpdateLookAtOrtho(eye, center, up mgl32.Vec3, left, right, bottom, top, near, far float32)

	// Frustum returns a copy of the current planes.
	Frustum() common.Frustum

	// IsInFrustum reports whether box is at least partially inside every plane.
	IsInFrustum(box common.AABB) bool

	// CreateDrawBuffer allocates the persistent indirect buffer and staging ring for source.
	// Calling it again for a known source is a no-op.
	//
	// Parameters:
	//   - source: the source identifier
	//   - capacity: the maximum number of draws the buffer holds
	//
	// Returns:
	//   - error: if allocation fails
	CreateDrawBuffer(source SourceID, capacity int) error

	// ResizeDrawBuffer replaces the draw buffer of source with one holding capacity draws.
	// The new buffer starts invalid. A source with no draw buffer yet is created.
	//
	// Parameters:
	//   - source: the source identifier
	//   - capacity: the new maximum number of draws
	//
	// Returns:
	//   - error: if allocation fails
	ResizeDrawBuffer(source SourceID, capacity int) error

	// DrawBufferCapacity returns the capacity of the draw buffer of source, 0 if it has none.
	DrawBufferCapacity(source SourceID) int

	// UpdateDrawBuffer uploads args through the next staging slot and copies them to the
	// start of the persistent buffer. A zero-length args marks the buffer valid with
	// count 0 and records no GPU work.
	//
	// Parameters:
	//   - enc: the encoder the copy is recorded on
	//   - source: a source previously passed to CreateDrawBuffer
	//   - args: the draw arguments that survived culling
	//
	// Returns:
	//   - error: if args exceed the capacity or the upload fails
	UpdateDrawBuffer(enc renderer.Encoder, source SourceID, args []renderer.DrawIndexedArguments) error

	// DrawBuffer returns the persistent buffer, its current count and whether it holds
	// data for the current frustum.
	DrawBuffer(source SourceID) (renderer.Buffer, int, bool)

	// HasDrawBuffer reports whether CreateDrawBuffer was called for source.
	HasDrawBuffer(source SourceID) bool

	// RingIndex returns the next staging slot for source.
	RingIndex(source SourceID) int

	// RingWraps returns how many times the staging ring of source has wrapped.
	RingWraps(source SourceID) int

	// InvalidateAllDrawBuffers clears the validity flag of every draw buffer.
	InvalidateAllDrawBuffers()

	// Release frees every draw buffer.
	Release()
}

var _ FrustumCulling = &frustumCulling{}

// NewFrustumCulling creates a FrustumCulling with an empty frustum.
//
// Parameters:
//   - device: the device draw buffers are allocated on
//   - options: variadic list of FrustumCullingBuilderOption functions
//
// Returns:
//   - FrustumCulling: the culling helper
func NewFrustumCulling(device renderer.Device, options ...FrustumCullingBuilderOption) FrustumCulling {
	if device == nil {
		panic("culling: nil device")
	}
	c := &frustumCulling{
		device:      device,
		label:       "Culling",
		drawBuffers: map[SourceID]*drawBufferSet{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *frustumCulling) CreateFrustum(pos, right, up, forward mgl32.Vec3, aspect, fovY, near, far float32) {
	c.frustum = common.NewPerspectiveFrustum(pos, right, up, forward, aspect, fovY, near, far)
	c.InvalidateAllDrawBuffers()
}

func (c *frustumCulling) CreateOrthoFrustum(pos, right, up, forward mgl32.Vec3, left, rightExt, bottom, top, near, far float32) {
	c.frustum = common.NewOrthoFrustum(pos, right, up, forward, left, rightExt, bottom, top, near, far)
	c.InvalidateAllDrawBuffers()
}

func (c *frustumCulling) UpdateFromCamera(cam camera.Camera) {
	u, v, w := cam.Basis()
	c.CreateFrustum(cam.Position(), u, v, w, cam.Aspect(), cam.Fov(), cam.Near(), cam.Far())
}

func (c *frustumCulling) UpdateLookAt(eye, center, up mgl32.Vec3, aspect, fovY, near, far float32) {
	u, v, w := lookAtBasis(eye, center, up)
	c.CreateFrustum(eye, u, v, w, aspect, fovY, near, far)
}

func (c *frustumCulling) UpdateLookAtOrtho(eye, center, up mgl32.Vec3, left, right, bottom, top, near, far float32) {
	u, v, w := lookAtBasis(eye, center, up)
	c.CreateOrthoFrustum(eye, u, v, w, left, right, bottom, top, near, far)
}

func (c *frustumCulling) Frustum() common.Frustum {
	return c.frustum
}

func (c *frustumCulling) IsInFrustum(box common.AABB) bool {
	return c.frustum.ContainsAABB(box)
}

func (c *frustumCulling) CreateDrawBuffer(source SourceID, capacity int) error {
	if _, ok := c.drawBuffers[source]; ok {
		return nil
	}
	if capacity <= 0 {
		panic(fmt.Sprintf("culling: draw buffer capacity %d for source %d", capacity, source))
	}

	size := uint64(capacity) * renderer.DrawIndexedArgumentsSize
	buf, err := c.device.CreateBuffer(renderer.BufferDescriptor{
		Label: fmt.Sprintf("%s Draw Buffer %d", c.label, source),
		Size:  size,
		Usage: renderer.BufferUsageIndirect | renderer.BufferUsageStorage | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create draw buffer for source %d: %w", source, err)
	}

	ring, err := renderer.NewStagingRing(c.device, fmt.Sprintf("%s Draw Staging %d", c.label, source), size, c.ringDepth)
	if err != nil {
		buf.Release()
		return err
	}

	c.drawBuffers[source] = &drawBufferSet{buffer: buf, ring: ring, capacity: capacity}
	return nil
}

func (c *frustumCulling) ResizeDrawBuffer(source SourceID, capacity int) error {
	if set, ok := c.drawBuffers[source]; ok {
		set.buffer.Release()
		set.ring.Release()
		delete(c.drawBuffers, source)
	}
	return c.CreateDrawBuffer(source, capacity)
}

func (c *frustumCulling) DrawBufferCapacity(source SourceID) int {
	if set, ok := c.drawBuffers[source]; ok {
		return set.capacity
	}
	return 0
}

func (c *frustumCulling) UpdateDrawBuffer(enc renderer.Encoder, source SourceID, args []renderer.DrawIndexedArguments) error {
	set := c.mustSet(source)
	if len(args) > set.capacity {
		return fmt.Errorf("failed to update draw buffer %d: %d draws exceed capacity %d", source, len(args), set.capacity)
	}

	set.valid = true
	set.count = len(args)
	if len(args) == 0 {
		return nil
	}

	if err := set.ring.Write(enc, renderer.MarshalDrawArguments(args), set.buffer, 0); err != nil {
		return fmt.Errorf("failed to update draw buffer %d: %w", source, err)
	}
	return nil
}

func (c *frustumCulling) DrawBuffer(source SourceID) (renderer.Buffer, int, bool) {
	set, ok := c.drawBuffers[source]
	if !ok {
		return nil, 0, false
	}
	return set.buffer, set.count, set.valid
}

func (c *frustumCulling) HasDrawBuffer(source SourceID) bool {
	_, ok := c.drawBuffers[source]
	return ok
}

func (c *frustumCulling) RingIndex(source SourceID) int {
	return c.mustSet(source).ring.Index()
}

func (c *frustumCulling) RingWraps(source SourceID) int {
	return c.mustSet(source).ring.Wraps()
}

func (c *frustumCulling) InvalidateAllDrawBuffers() {
	for _, set := range c.drawBuffers {
		set.valid = false
	}
}

func (c *frustumCulling) Release() {
	for id, set := range c.drawBuffers {
		set.buffer.Release()
		set.ring.Release()
		delete(c.drawBuffers, id)
	}
}

func (c *frustumCulling) mustSet(source SourceID) *drawBufferSet {
	set, ok := c.drawBuffers[source]
	if !ok {
		panic(fmt.Sprintf("culling: no draw buffer for source %d", source))
	}
	return set
}

// lookAtBasis returns the right, up and forward vectors of a view from eye to center.
func lookAtBasis(eye, center, up mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3, mgl32.Vec3) {
	w := center.Sub(eye).Normalize()
	u := w.Cross(up).Normalize()
	v := u.Cross(w)
	return u, v, w
}
