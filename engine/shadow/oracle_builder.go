package shadow

import "github.com/Carmen-Shannon/oxy-shadow/engine/light"

// OracleBuilderOption is a functional option used to configure a ShadowMapOracle.
type OracleBuilderOption func(*shadowMapOracle)

// WithOracleEnabled toggles the oracle. Enabled by default.
func WithOracleEnabled(enabled bool) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.enabled = enabled
	}
}

// WithCompareValue sets the shadow-map to camera pixel size ratio below which a shadow
// map lookup is trusted. Defaults to 1.
func WithCompareValue(v float32) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.compareValue = v
	}
}

// WithUpperBound sets the ratio above which a ray is always traced. Defaults to 32.
func WithUpperBound(v float32) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.upperBound = v
	}
}

// WithDistanceFunction sets the distance function the comparison is scaled by.
func WithDistanceFunction(f DistanceFunction) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.distanceFunction = f
	}
}

// WithAddRays traces additional rays to catch light leaks when the ratio is over the
// upper bound.
func WithAddRays(enabled bool) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.addRays = enabled
	}
}

// WithIgnoreDirect skips the oracle for direct hits and for surfaces smoother than
// roughness.
//
// Parameters:
//   - enabled: true to skip the oracle for those hits
//   - roughness: the roughness threshold
//
// Returns:
//   - OracleBuilderOption: option function to apply
func WithIgnoreDirect(enabled bool, roughness float32) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.useForDirect = enabled
		o.directRoughness = roughness
	}
}

// WithOracleClassifier shares the renderer's light classifier.
func WithOracleClassifier(c light.Classifier) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.classifier = c
	}
}

// WithOracleChangeDetector shares the renderer's change detector.
func WithOracleChangeDetector(d *ChangeDetector) OracleBuilderOption {
	return func(o *shadowMapOracle) {
		o.detector = d
	}
}
