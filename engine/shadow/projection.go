package shadow

import (
	"math"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// cubeFace is the look direction and up vector of one cube map face.
type cubeFace struct {
	Target mgl32.Vec3
	Up     mgl32.Vec3
}

// cubeFaces follows the +X, -X, -Y, +Y, +Z, -Z layer order. Fixed up vectors keep
// every face away from a degenerate look-at basis.
var cubeFaces = [6]cubeFace{
	{Target: mgl32.Vec3{1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}},
	{Target: mgl32.Vec3{-1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}},
	{Target: mgl32.Vec3{0, -1, 0}, Up: mgl32.Vec3{0, 0, -1}},
	{Target: mgl32.Vec3{0, 1, 0}, Up: mgl32.Vec3{0, 0, 1}},
	{Target: mgl32.Vec3{0, 0, 1}, Up: mgl32.Vec3{0, -1, 0}},
	{Target: mgl32.Vec3{0, 0, -1}, Up: mgl32.Vec3{0, -1, 0}},
}

// cubeFaceFov is the field of view of one cube face.
const cubeFaceFov = math.Pi / 2

// cubeFaceViewProjection returns the view-projection of face for a point light at pos.
func cubeFaceViewProjection(pos mgl32.Vec3, face int, near, far float32) mgl32.Mat4 {
	f := cubeFaces[face]
	view := common.LookAt(pos, pos.Add(f.Target), f.Up)
	return common.Perspective(cubeFaceFov, 1, near, far).Mul4(view)
}

// spotUp returns the up vector for a spot light looking along dir.
func spotUp(dir mgl32.Vec3) mgl32.Vec3 {
	if mgl32.Abs(dir.Y()) == 1 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}

// spotViewProjection returns the view-projection of a spot light. The field of view
// covers the whole cone.
func spotViewProjection(l light.Light, near, far float32) mgl32.Mat4 {
	pos, dir := l.Position(), l.Direction()
	view := common.LookAt(pos, pos.Add(dir), spotUp(dir))
	return common.Perspective(spotFov(l), 1, near, far).Mul4(view)
}

// spotFov is the full cone angle of a spot light, capped below pi.
func spotFov(l light.Light) float32 {
	return min(2*l.OpeningAngle(), math.Pi-1e-3)
}
