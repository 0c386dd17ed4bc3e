package light

import "math"

// DefaultShadowMapSize is the width and height in texels of 2D (spot) shadow maps.
const DefaultShadowMapSize uint32 = 2048

// DefaultCubeShadowMapSize is the per-face resolution of point light cube maps.
const DefaultCubeShadowMapSize uint32 = 1024

// DefaultCascadeShadowMapSize is the per-level resolution of directional cascades.
const DefaultCascadeShadowMapSize uint32 = 2048

// DefaultCascadeLevelCount is the number of cascade levels allocated per directional light.
const DefaultCascadeLevelCount uint32 = 3

// DefaultShadowNear is the near plane used by every shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the far plane used by point and spot shadow projections.
const DefaultShadowFar float32 = 60.0

// DefaultDepthBias is the constant depth bias baked into shadow rasterizer states.
const DefaultDepthBias int32 = 0

// DefaultSlopeBias is the slope-scaled depth bias baked into shadow rasterizer states.
const DefaultSlopeBias float32 = 0

// DefaultPointThreshold is the opening half-angle above which a point light is treated
// as omnidirectional and rendered into a cube map.
const DefaultPointThreshold float32 = math.Pi / 4
