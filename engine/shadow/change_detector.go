package shadow

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// generations counts how often each watched property has changed.
type generations struct {
	lightCount  uint64
	resolution  uint64
	surfaceArea uint64
	cascades    uint64
}

// ChangeDetector watches the light count, the shadow resolutions and per-light surface
// area changes. Several consumers share one detector, each through its own Cursor, so
// they agree on what changed without polling the scene separately.
type ChangeDetector struct {
	observed   bool
	lightCount int
	sizes      Sizes
	cascades   []mgl32.Vec2
	gen        generations
}

// Cursor is one consumer's position in a ChangeDetector's history.
type Cursor struct {
	started bool
	seen    generations
}

// Observation reports what changed since a cursor last consumed.
type Observation struct {
	// First is true on the cursor's first consume.
	First       bool
	LightCount  bool
	Resolution  bool
	SurfaceArea bool
	// Cascades is true when the cascade extents changed. The extents do not affect
	// texture allocation.
	Cascades bool
}

// Any reports whether anything changed, including a first consume.
func (o Observation) Any() bool {
	return o.First || o.LightCount || o.Resolution || o.SurfaceArea || o.Cascades
}

// NewChangeDetector creates an empty detector.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Observe compares lights and sizes with the previous observation and advances the
// matching generation counters. Observing the same state twice changes nothing except
// that lights still flagged with a surface area change count again.
//
// Parameters:
//   - lights: the ordered scene lights
//   - sizes: the current shadow resolutions
func (d *ChangeDetector) Observe(lights []light.Light, sizes Sizes) {
	if !d.observed {
		d.observed = true
		d.lightCount = len(lights)
		d.sizes = sizes
		d.gen.lightCount++
		d.gen.resolution++
	} else {
		if len(lights) != d.lightCount {
			d.lightCount = len(lights)
			d.gen.lightCount++
		}
		if sizes != d.sizes {
			d.sizes = sizes
			d.gen.resolution++
		}
	}

	for _, l := range lights {
		if l.Changes().Any(light.ChangeSurfaceArea) {
			d.gen.surfaceArea++
			break
		}
	}
}

// ObserveCascades records the per-level cascade extents.
func (d *ChangeDetector) ObserveCascades(extents []mgl32.Vec2) {
	if slices.Equal(extents, d.cascades) {
		return
	}
	d.cascades = slices.Clone(extents)
	d.gen.cascades++
}

// Consume reports what changed since c last consumed and moves c to the present.
//
// Parameters:
//   - c: the consumer's cursor
//
// Returns:
//   - Observation: the changes seen by this cursor
func (d *ChangeDetector) Consume(c *Cursor) Observation {
	o := Observation{
		First:       !c.started,
		LightCount:  c.seen.lightCount != d.gen.lightCount,
		Resolution:  c.seen.resolution != d.gen.resolution,
		SurfaceArea: c.seen.surfaceArea != d.gen.surfaceArea,
		Cascades:    c.seen.cascades != d.gen.cascades,
	}
	c.started = true
	c.seen = d.gen
	return o
}

// LightCount returns the light count of the latest observation.
func (d *ChangeDetector) LightCount() int {
	return d.lightCount
}
