package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source as the scene describes it.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits from a position. A point light with an
	// opening angle narrower than the classifier threshold acts as a spot light.
	LightTypePoint

	// LightTypeArea represents an emissive surface. Area lights have no shadow-map path.
	LightTypeArea
)

// String returns the light type name.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeArea:
		return "area"
	default:
		return "unknown"
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	id           uint32
	lightType    LightType
	position     mgl32.Vec3
	direction    mgl32.Vec3
	openingAngle float32 // half-angle of the emission cone in radians, pi for omnidirectional
	intensity    float32
	active       bool
	changes      Changes
}

// Light defines the interface for a light source in the scene.
//
// Every setter raises the matching bit in the per-frame change mask so the shadow
// renderer can decide which shadow maps are stale. The scene clears the mask once the
// frame has been rendered.
type Light interface {
	// ID returns the scene-assigned identity of the light.
	//
	// Returns:
	//   - uint32: the light id
	ID() uint32

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Direction returns the normalized direction of the light.
	// For directional lights this is the light direction, for spot lights the cone axis.
	//
	// Returns:
	//   - mgl32.Vec3: the normalized direction
	Direction() mgl32.Vec3

	// OpeningAngle returns the half-angle of the emission cone in radians.
	// Omnidirectional point lights report pi.
	//
	// Returns:
	//   - float32: the opening half-angle
	OpeningAngle() float32

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Active returns whether this light contributes to the current frame.
	//
	// Returns:
	//   - bool: true if the light is active
	Active() bool

	// Changes returns the change mask accumulated since the last ClearChanges.
	//
	// Returns:
	//   - Changes: the change bitmask
	Changes() Changes

	// SetPosition sets the world-space position and raises ChangePosition.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetDirection normalizes and sets the direction and raises ChangeDirection.
	//
	// Parameters:
	//   - d: the new direction (will be normalized)
	SetDirection(d mgl32.Vec3)

	// SetOpeningAngle sets the cone half-angle in radians, clamped to [0, pi].
	// The emitting surface changes with it, so ChangeSurfaceArea is raised.
	//
	// Parameters:
	//   - angle: the half-angle in radians
	SetOpeningAngle(angle float32)

	// SetIntensity sets the scalar intensity multiplier and raises ChangeIntensity.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetActive enables or disables the light and raises ChangeActive when the flag flips.
	//
	// Parameters:
	//   - active: true to enable the light
	SetActive(active bool)

	// ClearChanges resets the change mask. Called by the scene at the end of each frame.
	ClearChanges()
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the given type with the provided options.
// Defaults: active, intensity 1, direction (0, 0, -1), opening angle pi.
//
// Parameters:
//   - lightType: the kind of light source
//   - options: variadic list of LightBuilderOption functions
//
// Returns:
//   - Light: the newly created light
func NewLight(lightType LightType, options ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:    lightType,
		direction:    mgl32.Vec3{0, 0, -1},
		openingAngle: math.Pi,
		intensity:    1,
		active:       true,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightImpl) ID() uint32 {
	return l.id
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) OpeningAngle() float32 {
	return l.openingAngle
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Active() bool {
	return l.active
}

func (l *lightImpl) Changes() Changes {
	return l.changes
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	if p == l.position {
		return
	}
	l.position = p
	l.changes |= ChangePosition
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	n := normalize3(d)
	if n == l.direction {
		return
	}
	l.direction = n
	l.changes |= ChangeDirection
}

func (l *lightImpl) SetOpeningAngle(angle float32) {
	angle = mgl32.Clamp(angle, 0, math.Pi)
	if angle == l.openingAngle {
		return
	}
	l.openingAngle = angle
	l.changes |= ChangeSurfaceArea
}

func (l *lightImpl) SetIntensity(intensity float32) {
	if intensity == l.intensity {
		return
	}
	l.intensity = intensity
	l.changes |= ChangeIntensity
}

func (l *lightImpl) SetActive(active bool) {
	if active == l.active {
		return
	}
	l.active = active
	l.changes |= ChangeActive
}

func (l *lightImpl) ClearChanges() {
	l.changes = ChangeNone
}
