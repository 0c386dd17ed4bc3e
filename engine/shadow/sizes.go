package shadow

import (
	"cmp"

	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
)

// Sizes holds the resolution parameters every shadow resource is allocated from.
type Sizes struct {
	ShadowMapSize     uint32 // spot maps
	CubeSize          uint32 // point light cube faces
	CascadeSize       uint32 // directional cascade levels
	CascadeLevelCount uint32
}

// DefaultSizes returns the default shadow resolutions.
func DefaultSizes() Sizes {
	return Sizes{
		ShadowMapSize:     light.DefaultShadowMapSize,
		CubeSize:          light.DefaultCubeShadowMapSize,
		CascadeSize:       light.DefaultCascadeShadowMapSize,
		CascadeLevelCount: light.DefaultCascadeLevelCount,
	}
}

// withDefaults replaces zero fields with the defaults.
func (s Sizes) withDefaults() Sizes {
	d := DefaultSizes()
	return Sizes{
		ShadowMapSize:     cmp.Or(s.ShadowMapSize, d.ShadowMapSize),
		CubeSize:          cmp.Or(s.CubeSize, d.CubeSize),
		CascadeSize:       cmp.Or(s.CascadeSize, d.CascadeSize),
		CascadeLevelCount: cmp.Or(s.CascadeLevelCount, d.CascadeLevelCount),
	}
}
