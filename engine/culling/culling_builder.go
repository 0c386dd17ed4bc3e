package culling

// FrustumCullingBuilderOption is a functional option used to configure a FrustumCulling.
type FrustumCullingBuilderOption func(*frustumCulling)

// WithLabel sets the label prefix of every buffer the culling helper allocates.
func WithLabel(label string) FrustumCullingBuilderOption {
	return func(c *frustumCulling) {
		c.label = label
	}
}

// WithRingDepth sets the staging ring depth. Zero derives it from the device's frames
// in flight, and a depth the device could overrun panics at buffer creation.
//
// Parameters:
//   - depth: the number of staging slots per draw buffer
//
// Returns:
//   - FrustumCullingBuilderOption: option function to apply
func WithRingDepth(depth int) FrustumCullingBuilderOption {
	return func(c *frustumCulling) {
		c.ringDepth = depth
	}
}
