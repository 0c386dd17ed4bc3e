package shader

import _ "embed"

// ShadowDepthSource is the WGSL source of the depth-only spot and cascade pass.
//
//go:embed assets/shadow_depth.wgsl
var ShadowDepthSource string

// ShadowCubeSource is the WGSL source of the point light cube face pass.
//
//go:embed assets/shadow_cube.wgsl
var ShadowCubeSource string
