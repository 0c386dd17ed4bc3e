package scene

import (
	"github.com/Carmen-Shannon/oxy-shadow/engine/culling"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option used to configure a Scene during construction.
type SceneBuilderOption func(*scene)

// WithLights is an option builder that seeds the ordered light list.
//
// Parameters:
//   - lights: the lights in scene order
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lights = append(s.lights, lights...)
	}
}

// WithCullWorkers sets the number of worker goroutines used to cull drawables.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of cull workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.cullWorkers = n
	}
}

// WithBounds fixes the scene bounding sphere instead of deriving it from the drawables.
func WithBounds(center mgl32.Vec3, radius float32) SceneBuilderOption {
	return func(s *scene) {
		s.boundsOverride = true
		s.boundsCenter = center
		s.boundsRadius = radius
	}
}

// WithDrawSource sets the culling source id of the scene's draw arguments.
func WithDrawSource(source culling.SourceID) SceneBuilderOption {
	return func(s *scene) {
		s.source = source
	}
}
