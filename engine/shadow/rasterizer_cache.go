package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
)

// windings lists both front-face conventions a cached state is built for.
var windings = [...]renderer.FrontFace{renderer.FrontFaceCW, renderer.FrontFaceCCW}

// RasterizerStateCache holds one depth-bias rasterizer state per winding and cull mode.
// Shadow passes obtain rasterizer state only from here.
type RasterizerStateCache struct {
	bias  int32
	slope float32
	dirty bool

	states map[renderer.FrontFace]map[renderer.CullMode]renderer.RasterizerState
}

// NewRasterizerStateCache creates a cache that builds its states on the first Refresh.
//
// Parameters:
//   - bias: the constant depth bias
//   - slope: the slope-scaled depth bias
//
// Returns:
//   - *RasterizerStateCache: the cache
func NewRasterizerStateCache(bias int32, slope float32) *RasterizerStateCache {
	return &RasterizerStateCache{bias: bias, slope: slope, dirty: true}
}

// SetBias changes the depth bias. The states are rebuilt on the next Refresh.
func (c *RasterizerStateCache) SetBias(bias int32, slope float32) {
	if bias == c.bias && slope == c.slope {
		return
	}
	c.bias, c.slope = bias, slope
	c.dirty = true
}

// Bias returns the constant and slope-scaled depth bias.
func (c *RasterizerStateCache) Bias() (int32, float32) {
	return c.bias, c.slope
}

// Dirty reports whether the next Refresh rebuilds.
func (c *RasterizerStateCache) Dirty() bool {
	return c.dirty
}

// Refresh rebuilds all six states if the bias changed, releasing the old ones.
//
// Parameters:
//   - device: the device to create states on
//
// Returns:
//   - bool: true if the states were rebuilt
//   - error: if a state could not be created
func (c *RasterizerStateCache) Refresh(device renderer.Device) (bool, error) {
	if !c.dirty {
		return false, nil
	}

	states := make(map[renderer.FrontFace]map[renderer.CullMode]renderer.RasterizerState, len(windings))
	for _, w := range windings {
		states[w] = make(map[renderer.CullMode]renderer.RasterizerState, len(renderer.CullModes))
		for _, cull := range renderer.CullModes {
			rs, err := device.CreateRasterizerState(renderer.RasterizerDescriptor{
				CullMode:   cull,
				FrontFace:  w,
				DepthBias:  c.bias,
				SlopeScale: c.slope,
			})
			if err != nil {
				releaseStates(states)
				return false, fmt.Errorf("failed to create %s rasterizer state: %w", cull, err)
			}
			states[w][cull] = rs
		}
	}

	releaseStates(c.states)
	c.states = states
	c.dirty = false
	return true, nil
}

// Get returns the cached state for a winding and cull mode. It panics before the first Refresh.
func (c *RasterizerStateCache) Get(winding renderer.FrontFace, cull renderer.CullMode) renderer.RasterizerState {
	rs, ok := c.states[winding][cull]
	if !ok {
		panic(fmt.Sprintf("shadow: no rasterizer state for winding %d cull %s; Refresh first", winding, cull))
	}
	return rs
}

// Release frees every cached state.
func (c *RasterizerStateCache) Release() {
	releaseStates(c.states)
	c.states = nil
	c.dirty = true
}

func releaseStates(states map[renderer.FrontFace]map[renderer.CullMode]renderer.RasterizerState) {
	for _, byCull := range states {
		for _, rs := range byCull {
			rs.Release()
		}
	}
}
