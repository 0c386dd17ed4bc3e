package light

// ShadowKind is the shadow-map codepath a light is rendered through.
type ShadowKind int

const (
	// ShadowKindNotSupported marks lights without a shadow-map path.
	ShadowKindNotSupported ShadowKind = iota
	// ShadowKindPoint lights render six cube faces.
	ShadowKindPoint
	// ShadowKindSpot lights render one perspective view.
	ShadowKindSpot
	// ShadowKindDirectional lights render orthographic cascades.
	ShadowKindDirectional
)

func (k ShadowKind) String() string {
	switch k {
	case ShadowKindPoint:
		return "point"
	case ShadowKindSpot:
		return "spot"
	case ShadowKindDirectional:
		return "directional"
	default:
		return "not-supported"
	}
}

// Classifier maps lights to shadow kinds. One Classifier is shared by every component
// that needs to agree on a light's kind.
type Classifier struct {
	// PointThreshold is the opening half-angle (radians) above which a point light is
	// treated as omnidirectional.
	PointThreshold float32
}

// NewClassifier creates a Classifier with the given point threshold. A zero threshold
// selects DefaultPointThreshold.
//
// Parameters:
//   - pointThreshold: the opening half-angle in radians
//
// Returns:
//   - Classifier: the classifier
func NewClassifier(pointThreshold float32) Classifier {
	if pointThreshold == 0 {
		pointThreshold = DefaultPointThreshold
	}
	return Classifier{PointThreshold: pointThreshold}
}

// Classify returns the shadow kind of l.
//
// Parameters:
//   - l: the light to classify
//
// Returns:
//   - ShadowKind: the kind, ShadowKindNotSupported for lights without a shadow path
func (c Classifier) Classify(l Light) ShadowKind {
	return Classify(l, c.PointThreshold)
}

// Classify returns the shadow kind of l for an explicit point threshold.
// Point lights wider than pointThreshold are omnidirectional, narrower ones are spots.
func Classify(l Light, pointThreshold float32) ShadowKind {
	switch l.Type() {
	case LightTypeDirectional:
		return ShadowKindDirectional
	case LightTypePoint:
		if l.OpeningAngle() > pointThreshold {
			return ShadowKindPoint
		}
		return ShadowKindSpot
	default:
		return ShadowKindNotSupported
	}
}

// ClassifyAll classifies every light in order.
//
// Parameters:
//   - lights: the ordered scene lights
//
// Returns:
//   - []ShadowKind: one kind per light
func (c Classifier) ClassifyAll(lights []Light) []ShadowKind {
	kinds := make([]ShadowKind, len(lights))
	for i, l := range lights {
		kinds[i] = c.Classify(l)
	}
	return kinds
}
