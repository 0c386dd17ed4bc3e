package shadow

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shadow/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// NPSScale multiplies every normalized pixel size to keep the values away from the
// float32 denormal range.
const NPSScale = 1000

// DistanceFunction selects how the oracle scales its comparison with hit distance.
type DistanceFunction uint32

const (
	// DistanceFunctionNone compares the raw pixel size ratio.
	DistanceFunctionNone DistanceFunction = iota
	// DistanceFunctionRoughnessSquare widens the comparison by the squared surface roughness.
	DistanceFunctionRoughnessSquare
)

func (f DistanceFunction) String() string {
	switch f {
	case DistanceFunctionNone:
		return "none"
	case DistanceFunctionRoughnessSquare:
		return "roughness-square"
	default:
		return "unknown"
	}
}

// OracleSizing holds the shadow resolutions the light pixel sizes are derived from.
type OracleSizing struct {
	Sizes
	// CascadeExtents holds the orthographic width and height of every cascade level,
	// CascadeLevelCount entries per directional light in scene order.
	CascadeExtents []mgl32.Vec2
}

// NormalizedPixelSize returns the scaled area one pixel covers at unit distance for a
// perspective projection.
//
// Parameters:
//   - res: the render target width and height in pixels
//   - fovY: the vertical field of view in radians
//   - aspect: width over height
//
// Returns:
//   - float32: the pixel area times NPSScale
func NormalizedPixelSize(res [2]uint32, fovY, aspect float32) float32 {
	if res[0] == 0 || res[1] == 0 {
		return 0
	}
	h := 2 * float32(math.Tan(float64(fovY)/2))
	w := h * aspect
	return (w / float32(res[0])) * (h / float32(res[1])) * NPSScale
}

// NormalizedPixelSizeOrtho returns the scaled area one pixel covers for an orthographic
// projection of the given extents.
func NormalizedPixelSizeOrtho(res [2]uint32, width, height float32) float32 {
	if res[0] == 0 || res[1] == 0 {
		return 0
	}
	return (width / float32(res[0])) * (height / float32(res[1])) * NPSScale
}

// shadowMapOracle is the implementation of the ShadowMapOracle interface.
type shadowMapOracle struct {
	device     renderer.Device
	classifier light.Classifier
	detector   *ChangeDetector
	cursor     Cursor

	enabled          bool
	compareValue     float32
	upperBound       float32
	distanceFunction DistanceFunction
	addRays          bool
	useForDirect     bool
	directRoughness  float32

	cameraNPS     float32
	lightNPS      []float32
	spotOffset    uint32
	cascadeOffset uint32

	npsBuffer   renderer.Buffer
	recomputes  int
	initialized bool
}

// ShadowMapOracle predicts where a shadow-map lookup is as accurate as a traced
// visibility ray by comparing the pixel size of each shadow map with the camera's.
type ShadowMapOracle interface {
	// Update recomputes the camera pixel size and, when the lights or resolutions
	// changed, the per-light pixel sizes.
	//
	// Parameters:
	//   - scn: the scene
	//   - frameDim: the camera frame width and height
	//   - sizing: the shadow resolutions in use
	//
	// Returns:
	//   - bool: true when the light count changed and shader vars must be rebound
	//   - error: if the pixel size buffer could not be uploaded
	Update(scn scene.Scene, frameDim [2]uint32, sizing OracleSizing) (bool, error)

	// CameraNPS returns the camera's normalized pixel size from the last Update.
	CameraNPS() float32

	// LightNPS returns the per-light pixel sizes ordered point, spot, then every
	// cascade level of every directional light.
	LightNPS() []float32

	// Offsets returns the index of the first spot and the first cascade entry in LightNPS.
	Offsets() (spot, cascade uint32)

	// Recomputes returns how many times the light pixel sizes were rebuilt.
	Recomputes() int

	// Defines returns the compile-time defines of the oracle.
	Defines() *shader.DefineList

	// SetShaderData binds the camera pixel size and the light pixel size buffer.
	SetShaderData(vars renderer.ShaderVars)

	SetEnabled(enabled bool)
	SetCompareValue(v float32)
	SetUpperBound(v float32)
	SetDistanceFunction(f DistanceFunction)
	SetAddRays(enabled bool)

	// Release frees the pixel size buffer.
	Release()
}

var _ ShadowMapOracle = &shadowMapOracle{}

// NewShadowMapOracle creates an oracle. Share the renderer's classifier and change
// detector through the options so both agree on light kinds and changes.
//
// Parameters:
//   - device: the device the pixel size buffer lives on
//   - options: variadic list of OracleBuilderOption functions
//
// Returns:
//   - ShadowMapOracle: the oracle
func NewShadowMapOracle(device renderer.Device, options ...OracleBuilderOption) ShadowMapOracle {
	if device == nil {
		panic("shadow: NewShadowMapOracle requires a non-nil Device")
	}
	o := &shadowMapOracle{
		device:       device,
		classifier:   light.NewClassifier(light.DefaultPointThreshold),
		enabled:      true,
		compareValue: 1,
		upperBound:   32,
		addRays:      false,
		useForDirect: true,
		// roughness below which hits count as very specular
		directRoughness: 0.085,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.detector == nil {
		o.detector = NewChangeDetector()
	}
	return o
}

func (o *shadowMapOracle) Update(scn scene.Scene, frameDim [2]uint32, sizing OracleSizing) (bool, error) {
	if scn == nil {
		panic("shadow: oracle Update requires a non-nil Scene")
	}

	cam := scn.Camera()
	o.cameraNPS = NormalizedPixelSize(frameDim, cam.Fov(), cam.Aspect())

	lights := scn.Lights()
	sizing.Sizes = sizing.Sizes.withDefaults()
	o.detector.Observe(lights, sizing.Sizes)
	o.detector.ObserveCascades(sizing.CascadeExtents)
	obs := o.detector.Consume(&o.cursor)
	if !obs.Any() && o.initialized {
		return false, nil
	}

	if err := o.recompute(lights, sizing); err != nil {
		return false, err
	}
	o.initialized = true
	return obs.LightCount, nil
}

func (o *shadowMapOracle) recompute(lights []light.Light, sizing OracleSizing) error {
	var pointNPS, spotNPS, cascadeNPS []float32
	cube := [2]uint32{sizing.CubeSize, sizing.CubeSize}
	spot := [2]uint32{sizing.ShadowMapSize, sizing.ShadowMapSize}
	cascade := [2]uint32{sizing.CascadeSize, sizing.CascadeSize}
	levels := int(sizing.CascadeLevelCount)

	directional := 0
	for _, l := range lights {
		switch o.classifier.Classify(l) {
		case light.ShadowKindPoint:
			pointNPS = append(pointNPS, NormalizedPixelSize(cube, cubeFaceFov, 1))
		case light.ShadowKindSpot:
			spotNPS = append(spotNPS, NormalizedPixelSize(spot, spotFov(l), 1))
		case light.ShadowKindDirectional:
			for lvl := 0; lvl < levels; lvl++ {
				var ext mgl32.Vec2
				if idx := directional*levels + lvl; idx < len(sizing.CascadeExtents) {
					ext = sizing.CascadeExtents[idx]
				}
				cascadeNPS = append(cascadeNPS, NormalizedPixelSizeOrtho(cascade, ext.X(), ext.Y()))
			}
			directional++
		}
	}

	nps := make([]float32, 0, len(pointNPS)+len(spotNPS)+len(cascadeNPS))
	nps = append(nps, pointNPS...)
	nps = append(nps, spotNPS...)
	nps = append(nps, cascadeNPS...)
	o.spotOffset = uint32(len(pointNPS))
	o.cascadeOffset = uint32(len(pointNPS) + len(spotNPS))

	size := uint64(max(len(nps), 1) * 4)
	if o.npsBuffer == nil || o.npsBuffer.Descriptor().Size != size {
		if o.npsBuffer != nil {
			o.npsBuffer.Release()
			o.npsBuffer = nil
		}
		buf, err := o.device.CreateBuffer(renderer.BufferDescriptor{
			Label: "Shadow Map NPS",
			Size:  size,
			Usage: renderer.BufferUsageStorage | renderer.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create shadow map NPS buffer: %w", err)
		}
		o.npsBuffer = buf
	}
	if len(nps) > 0 {
		if err := o.device.WriteBuffer(o.npsBuffer, 0, common.MarshalFloats(nps)); err != nil {
			return fmt.Errorf("failed to upload shadow map NPS buffer: %w", err)
		}
	}

	o.lightNPS = nps
	o.recomputes++
	logger.L().Debug("recomputed shadow map NPS",
		zap.Int("entries", len(nps)),
		zap.Uint32("spotOffset", o.spotOffset),
		zap.Uint32("cascadeOffset", o.cascadeOffset),
	)
	return nil
}

func (o *shadowMapOracle) CameraNPS() float32 {
	return o.cameraNPS
}

func (o *shadowMapOracle) LightNPS() []float32 {
	return o.lightNPS
}

func (o *shadowMapOracle) Offsets() (uint32, uint32) {
	return o.spotOffset, o.cascadeOffset
}

func (o *shadowMapOracle) Recomputes() int {
	return o.recomputes
}

func (o *shadowMapOracle) Defines() *shader.DefineList {
	return shader.NewDefineList().
		AddBool("USE_ORACLE_FUNCTION", o.enabled).
		AddUint("NPS_OFFSET_SPOT", o.spotOffset).
		AddUint("NPS_OFFSET_CASCADED", o.cascadeOffset).
		AddFloat("ORACLE_CAMERA_NPS", o.cameraNPS).
		AddUint("NPS_ARRAY_LENGTH", uint32(len(o.lightNPS))).
		AddFloat("ORACLE_COMP_VALUE", o.compareValue).
		AddFloat("ORACLE_UPPER_BOUND", o.upperBound).
		AddUint("ORACLE_DIST_FUNCTION_MODE", uint32(o.distanceFunction)).
		AddBool("USE_ORACLE_DISTANCE_FUNCTION", o.distanceFunction != DistanceFunctionNone).
		AddBool("ORACLE_ADD_RAYS", o.addRays).
		AddBool("USE_ORACLE_FOR_DIRECT", o.useForDirect).
		AddFloat("USE_ORACLE_FOR_DIRECT_ROUGHNESS", o.directRoughness)
}

func (o *shadowMapOracle) SetShaderData(vars renderer.ShaderVars) {
	vars.SetBytes("gCameraNPS", common.MarshalFloats([]float32{o.cameraNPS}))
	if o.npsBuffer != nil {
		vars.SetBuffer("gShadowMapNPSBuffer", o.npsBuffer)
	}
}

func (o *shadowMapOracle) SetEnabled(enabled bool) {
	o.enabled = enabled
}

func (o *shadowMapOracle) SetCompareValue(v float32) {
	o.compareValue = v
}

func (o *shadowMapOracle) SetUpperBound(v float32) {
	o.upperBound = v
}

func (o *shadowMapOracle) SetDistanceFunction(f DistanceFunction) {
	o.distanceFunction = f
}

func (o *shadowMapOracle) SetAddRays(enabled bool) {
	o.addRays = enabled
}

func (o *shadowMapOracle) Release() {
	if o.npsBuffer != nil {
		o.npsBuffer.Release()
		o.npsBuffer = nil
	}
	o.initialized = false
}
