package shadow

import (
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
)

// ShadowRendererBuilderOption is a functional option used to configure a ShadowRenderer.
type ShadowRendererBuilderOption func(*shadowRenderer)

// WithSizes sets every shadow resolution at once. Zero fields keep their defaults.
//
// Parameters:
//   - sizes: the shadow resolutions
//
// Returns:
//   - ShadowRendererBuilderOption: option function to apply
func WithSizes(sizes Sizes) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.sizes = sizes
	}
}

// WithNearFar sets the near and far planes of point and spot projections.
func WithNearFar(near, far float32) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.near, r.far = near, far
	}
}

// WithBias sets the constant and slope-scaled depth bias of every shadow pass.
//
// Parameters:
//   - bias: the constant depth bias
//   - slope: the slope-scaled depth bias
//
// Returns:
//   - ShadowRendererBuilderOption: option function to apply
func WithBias(bias int32, slope float32) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.bias, r.slope = bias, slope
	}
}

// WithCullMode sets which faces shadow passes discard. Defaults to back faces.
func WithCullMode(mode renderer.CullMode) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.cullMode = mode
	}
}

// WithFrontFace sets the winding of front-facing triangles. Defaults to counter-clockwise.
func WithFrontFace(winding renderer.FrontFace) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.frontFace = winding
	}
}

// WithAlphaTest enables alpha-tested shadow casters with the given mode.
func WithAlphaTest(enabled bool, mode uint32) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.alphaTest, r.alphaTestMode = enabled, mode
	}
}

// WithPCF toggles percentage-closer filtering in consuming passes. Enabled by default.
func WithPCF(enabled bool) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.usePCF = enabled
	}
}

// WithFrustumCulling culls scene geometry against every shadow view before drawing.
//
// Parameters:
//   - enabled: true to cull per light view
//
// Returns:
//   - ShadowRendererBuilderOption: option function to apply
func WithFrustumCulling(enabled bool) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.useCulling = enabled
	}
}

// WithPointLightThreshold sets the opening half-angle, in radians, above which a point
// light renders into a cube map instead of a spot map.
func WithPointLightThreshold(threshold float32) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.classifier = light.NewClassifier(threshold)
	}
}

// WithChangeDetector shares an existing change detector instead of creating one.
func WithChangeDetector(d *ChangeDetector) ShadowRendererBuilderOption {
	return func(r *shadowRenderer) {
		r.detector = d
	}
}
