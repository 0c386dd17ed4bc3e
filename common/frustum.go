package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane is an oriented plane. Points with a positive signed distance lie on the
// side the normal points to.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// NewPlane builds a plane through point p with normal n. The normal is normalized
// and Distance is set to dot(normal, p).
//
// Parameters:
//   - p: any point on the plane
//   - n: the plane normal (normalized internally)
//
// Returns:
//   - Plane: the constructed plane
func NewPlane(p, n mgl32.Vec3) Plane {
	normal := n.Normalize()
	return Plane{Normal: normal, Distance: normal.Dot(p)}
}

// SignedDistance returns the signed distance from point to the plane.
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) - p.Distance
}

// AABB is an axis-aligned bounding box stored as center and half extent.
type AABB struct {
	Center mgl32.Vec3
	Extent mgl32.Vec3
}

// NewAABBFromMinMax builds an AABB from its min and max corners.
//
// Parameters:
//   - minP: the minimum corner
//   - maxP: the maximum corner
//
// Returns:
//   - AABB: the box
func NewAABBFromMinMax(minP, maxP mgl32.Vec3) AABB {
	return AABB{
		Center: minP.Add(maxP).Mul(0.5),
		Extent: maxP.Sub(minP).Mul(0.5),
	}
}

// Frustum represents the six planes of a view frustum for culling.
// All plane normals point into the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// NewPerspectiveFrustum builds a perspective frustum from a camera basis.
// The far-plane half extents are computed once and the side planes are derived from
// them with cross products, so every side plane passes through pos.
//
// Parameters:
//   - pos: the camera position
//   - right: the camera right vector (U)
//   - up: the camera up vector (V)
//   - forward: the normalized viewing direction (W)
//   - aspect: the viewport aspect ratio (width/height)
//   - fovY: vertical field of view in radians
//   - near, far: the clip plane distances along forward
//
// Returns:
//   - Frustum: the six-plane frustum
func NewPerspectiveFrustum(pos, right, up, forward mgl32.Vec3, aspect, fovY, near, far float32) Frustum {
	halfV := far * float32(math.Tan(float64(fovY)*0.5))
	halfH := halfV * aspect
	frontFar := forward.Mul(far)

	var f Frustum
	f.Planes[FrustumNear] = NewPlane(pos.Add(forward.Mul(near)), forward)
	f.Planes[FrustumFar] = NewPlane(pos.Add(frontFar), forward.Mul(-1))
	f.Planes[FrustumTop] = NewPlane(pos, frontFar.Add(up.Mul(halfV)).Cross(right))
	f.Planes[FrustumBottom] = NewPlane(pos, right.Cross(frontFar.Sub(up.Mul(halfV))))
	f.Planes[FrustumLeft] = NewPlane(pos, frontFar.Sub(right.Mul(halfH)).Cross(up))
	f.Planes[FrustumRight] = NewPlane(pos, up.Cross(frontFar.Add(right.Mul(halfH))))
	return f
}

// NewOrthoFrustum builds a box-shaped frustum from a camera basis and the extents of
// an orthographic projection.
//
// Parameters:
//   - pos: the camera position
//   - right, up, forward: the normalized camera basis
//   - left, rightExt, bottom, top: the view volume extents along right and up
//   - near, far: the clip plane distances along forward
//
// Returns:
//   - Frustum: the six-plane frustum
func NewOrthoFrustum(pos, right, up, forward mgl32.Vec3, left, rightExt, bottom, top, near, far float32) Frustum {
	var f Frustum
	f.Planes[FrustumNear] = NewPlane(pos.Add(forward.Mul(near)), forward)
	f.Planes[FrustumFar] = NewPlane(pos.Add(forward.Mul(far)), forward.Mul(-1))
	f.Planes[FrustumLeft] = NewPlane(pos.Add(right.Mul(left)), right)
	f.Planes[FrustumRight] = NewPlane(pos.Add(right.Mul(rightExt)), right.Mul(-1))
	f.Planes[FrustumBottom] = NewPlane(pos.Add(up.Mul(bottom)), up)
	f.Planes[FrustumTop] = NewPlane(pos.Add(up.Mul(top)), up.Mul(-1))
	return f
}

// ContainsAABB reports whether box is at least partially inside the frustum.
// Each plane is tested against the box's projected radius; all six must pass.
//
// Parameters:
//   - box: the axis-aligned box to test
//
// Returns:
//   - bool: false only if the box lies completely behind some plane
func (f *Frustum) ContainsAABB(box AABB) bool {
	inside := true
	for i := range f.Planes {
		inside = inside && f.Planes[i].inFront(box)
	}
	return inside
}

func (p Plane) inFront(box AABB) bool {
	r := box.Extent.Dot(Abs3(p.Normal))
	return -r <= p.SignedDistance(box.Center)
}
