package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
// Options set fields directly and never raise change bits.
type LightBuilderOption func(*lightImpl)

// WithID is an option builder that sets the scene identity of the light.
//
// Parameters:
//   - id: the light id
//
// Returns:
//   - LightBuilderOption: a function that applies the id option to a lightImpl
func WithID(id uint32) LightBuilderOption {
	return func(l *lightImpl) {
		l.id = id
	}
}

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(mgl32.Vec3{x, y, z})
	}
}

// WithOpeningAngle is an option builder that sets the cone half-angle in radians.
//
// Parameters:
//   - angle: the half-angle in radians, clamped to [0, pi]
//
// Returns:
//   - LightBuilderOption: a function that applies the opening angle option to a lightImpl
func WithOpeningAngle(angle float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.openingAngle = mgl32.Clamp(angle, 0, math.Pi)
	}
}

// WithSpotCone is an option builder that narrows a point light to a cone.
// The angle is given in degrees, matching how artists author spot lights.
//
// Parameters:
//   - outerDeg: the cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotCone(outerDeg float32) LightBuilderOption {
	return WithOpeningAngle(mgl32.DegToRad(outerDeg))
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithActive is an option builder that sets whether the light is active for rendering.
//
// Parameters:
//   - active: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the active option to a lightImpl
func WithActive(active bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.active = active
	}
}

// normalize3 normalizes a vector. Returns a zero vector if the input has zero length.
func normalize3(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
