// Package shadow renders adaptive shadow maps for point, spot and directional lights
// and predicts where a shadow-map lookup is accurate enough to replace a traced ray.
package shadow

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/engine/culling"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-shadow/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// RendererState is the phase a ShadowRenderer last finished an Update in.
type RendererState int

const (
	// StateIdle means there was nothing to render.
	StateIdle RendererState = iota
	// StateBuffersStale means resolutions changed or a reset was requested and the
	// pool rebuilds on the next Update.
	StateBuffersStale
	// StateRasterDefinesStale means a shader-affecting toggle changed and the raster
	// programs recompile on the next Update.
	StateRasterDefinesStale
	// StateRendering means the last Update recorded shadow passes.
	StateRendering
)

func (s RendererState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffersStale:
		return "buffers-stale"
	case StateRasterDefinesStale:
		return "raster-defines-stale"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// pointChanges and spotChanges are the light changes that make a shadow map stale.
const (
	pointChanges = light.ChangeActive | light.ChangePosition
	spotChanges  = light.ChangeActive | light.ChangePosition | light.ChangeDirection
)

// FrameStats counts the work of the last Update.
type FrameStats struct {
	PointLightsRendered int
	SpotLightsRendered  int
	Passes              int
	Draws               int
	VPUploaded          bool
	Rebuilt             bool
}

// shadowRenderer is the implementation of the ShadowRenderer interface.
type shadowRenderer struct {
	device renderer.Device
	scene  scene.Scene

	classifier light.Classifier
	detector   *ChangeDetector
	pool       *ResourcePool
	raster     *RasterizerStateCache

	cubePipeline pipeline.Pipeline
	spotPipeline pipeline.Pipeline
	sampler      renderer.Sampler

	sizes     Sizes
	near, far float32
	bias      int32
	slope     float32
	cullMode  renderer.CullMode
	frontFace renderer.FrontFace

	alphaTest     bool
	alphaTestMode uint32
	usePCF        bool
	useCulling    bool

	sceneCenter       mgl32.Vec3
	directionalOffset float32
	cascadeExtents    []mgl32.Vec2

	buffersStale       bool
	rasterDefinesStale bool
	firstFrame         bool
	rebind             bool
	state              RendererState
	stats              FrameStats

	// culling per light slot, one per spot and six per point
	spotCulling  []culling.FrustumCulling
	pointCulling [][6]culling.FrustumCulling
}

// ShadowRenderer decides each frame which shadow maps are stale and renders them.
type ShadowRenderer interface {
	// Update re-renders the shadow maps of lights that changed. It returns true when the
	// shadow maps are ready for this frame, including when there are no active lights,
	// and false when the light classification drifted since the last rebuild. A drift
	// requests a rebuild for the next Update and records no GPU work.
	//
	// Parameters:
	//   - ctx: checked before any GPU work is recorded
	//
	// Returns:
	//   - bool: whether the shadow maps are ready
	//   - error: if an allocation, compile or submission failed
	Update(ctx context.Context) (bool, error)

	// RebindRequired reports whether the last Update reallocated resources, so shader
	// vars bound from SetShaderData must be bound again.
	RebindRequired() bool

	// State returns the phase the last Update finished in.
	State() RendererState

	// Stats returns the work counters of the last Update.
	Stats() FrameStats

	// Defines returns the compile-time defines a consuming shading pass needs.
	Defines() *shader.DefineList

	// SetShaderData binds the shadow maps, matrices and parameters on vars.
	// It panics before the first successful Update.
	//
	// Parameters:
	//   - vars: the consumer's shader variables
	//   - frameDim: the consumer's frame width and height
	SetShaderData(vars renderer.ShaderVars, frameDim [2]uint32)

	// Pool returns the resource pool.
	Pool() *ResourcePool

	// Classifier returns the classifier shared with the oracle.
	Classifier() light.Classifier

	// Detector returns the change detector shared with the oracle.
	Detector() *ChangeDetector

	// OracleSizing returns the resolutions the oracle derives pixel sizes from.
	OracleSizing() OracleSizing

	SetShadowMapSize(size uint32)
	SetCubeSize(size uint32)
	SetCascadeSize(size uint32)
	SetCascadeLevelCount(count uint32)
	SetNearFar(near, far float32)
	SetBias(bias int32, slope float32)
	SetCullMode(mode renderer.CullMode)
	SetAlphaTest(enabled bool, mode uint32)
	SetPCF(enabled bool)
	SetUseFrustumCulling(enabled bool)

	// Reset releases every resource; the next Update rebuilds from scratch.
	Reset()

	// Release frees every GPU resource the renderer owns.
	Release()
}

var _ ShadowRenderer = &shadowRenderer{}

// NewShadowRenderer creates a ShadowRenderer for scn. Resources are allocated on the
// first Update.
//
// Parameters:
//   - device: the device to render on
//   - scn: the scene whose lights cast shadows
//   - options: variadic list of ShadowRendererBuilderOption functions
//
// Returns:
//   - ShadowRenderer: the renderer
//   - error: if the shadow sampler could not be created
func NewShadowRenderer(device renderer.Device, scn scene.Scene, options ...ShadowRendererBuilderOption) (ShadowRenderer, error) {
	if device == nil {
		panic("shadow: NewShadowRenderer requires a non-nil Device")
	}
	if scn == nil {
		panic("shadow: NewShadowRenderer requires a non-nil Scene")
	}

	r := &shadowRenderer{
		device:       device,
		scene:        scn,
		classifier:   light.NewClassifier(light.DefaultPointThreshold),
		sizes:        DefaultSizes(),
		near:         light.DefaultShadowNear,
		far:          light.DefaultShadowFar,
		bias:         light.DefaultDepthBias,
		slope:        light.DefaultSlopeBias,
		cullMode:     renderer.CullModeBack,
		frontFace:    renderer.FrontFaceCCW,
		usePCF:       true,
		buffersStale: true,
		firstFrame:   true,
		state:        StateBuffersStale,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.near <= 0 || r.far <= r.near {
		panic(fmt.Sprintf("shadow: invalid near/far planes %v/%v", r.near, r.far))
	}
	if r.detector == nil {
		r.detector = NewChangeDetector()
	}
	r.sizes = r.sizes.withDefaults()

	r.pool = NewResourcePool(device, r.classifier, r.detector)
	r.raster = NewRasterizerStateCache(r.bias, r.slope)
	r.cubePipeline = pipeline.NewPipeline("Shadow Cube",
		pipeline.WithSource(shader.ShadowCubeSource),
		pipeline.WithFragmentEntry("fs_main", renderer.TextureFormatR32Float),
		pipeline.WithDefines(r.rasterDefines()),
	)
	r.spotPipeline = pipeline.NewPipeline("Shadow Spot",
		pipeline.WithSource(shader.ShadowDepthSource),
		pipeline.WithDefines(r.rasterDefines()),
	)

	s, err := device.CreateSampler(renderer.SamplerDescriptor{
		Label:  "Shadow Point Sampler",
		Filter: renderer.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow sampler: %w", err)
	}
	r.sampler = s
	return r, nil
}

func (r *shadowRenderer) Update(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.rebind = false
	r.stats = FrameStats{}

	if r.scene.ActiveLightCount() == 0 {
		r.state = StateIdle
		return true, nil
	}
	lights := r.scene.Lights()

	if r.buffersStale {
		r.pool.RequestReset()
	}
	rebuilt, err := r.pool.Rebuild(lights, r.sizes)
	if err != nil {
		r.state = StateBuffersStale
		return false, fmt.Errorf("failed to rebuild shadow resources: %w", err)
	}
	if rebuilt {
		r.onRebuilt()
	}

	if err := r.prepareRaster(); err != nil {
		return false, err
	}

	kinds := r.pool.Kinds()
	for i, l := range lights {
		if kind := r.classifier.Classify(l); kind != kinds[i] {
			logger.L().Info("shadow light classification drifted; rebuilding next frame",
				zap.Uint32("light", l.ID()),
				zap.Stringer("was", kinds[i]),
				zap.Stringer("now", kind),
			)
			r.pool.RequestReset()
			r.buffersStale = true
			r.state = StateBuffersStale
			return false, nil
		}
	}

	var points, spots, directionals []int
	for i, l := range lights {
		if !l.Active() {
			continue
		}
		switch kinds[i] {
		case light.ShadowKindPoint:
			points = append(points, i)
		case light.ShadowKindSpot:
			spots = append(spots, i)
		case light.ShadowKindDirectional:
			directionals = append(directionals, i)
		}
	}

	f := &frame{r: r}
	vp := r.pool.ViewProjections()
	vp.BeginFrame()

	for _, i := range points {
		l := lights[i]
		if !l.Changes().Any(pointChanges) && !r.firstFrame {
			continue
		}
		if err := r.renderPoint(f, l, int(r.pool.LightIndexMap()[i])); err != nil {
			return false, err
		}
		r.stats.PointLightsRendered++
	}

	for _, i := range spots {
		l := lights[i]
		if !l.Changes().Any(spotChanges) && !r.firstFrame {
			continue
		}
		slot := int(r.pool.LightIndexMap()[i])
		m, err := r.renderSpot(f, l, slot)
		if err != nil {
			return false, err
		}
		vp.Set(slot, m)
		r.stats.SpotLightsRendered++
	}

	// cascades are not rendered yet; keep the matrix buffer refreshed for consumers
	if len(directionals) > 0 && vp.Len() > 0 {
		vp.MarkDirty()
	}

	if vp.Dirty() {
		enc, err := f.encoder()
		if err != nil {
			return false, err
		}
		uploaded, err := vp.Flush(enc)
		if err != nil {
			return false, err
		}
		r.stats.VPUploaded = uploaded && vp.Len() > 0
	}

	if err := f.submit(); err != nil {
		return false, err
	}

	r.firstFrame = false
	r.state = StateRendering
	return true, nil
}

// onRebuilt resets everything derived from the previous resources.
func (r *shadowRenderer) onRebuilt() {
	r.buffersStale = false
	r.firstFrame = true
	r.rebind = true
	r.stats.Rebuilt = true
	r.updateProjectionParams()
	r.resetCulling()
}

// updateProjectionParams fits the directional offset and cascade extents to the
// scene bounding sphere.
func (r *shadowRenderer) updateProjectionParams() {
	center, radius := r.scene.Bounds()
	r.sceneCenter = center
	r.directionalOffset = radius

	levels := int(r.sizes.CascadeLevelCount)
	r.cascadeExtents = r.cascadeExtents[:0]
	for range r.pool.CascadeMaps() {
		for lvl := 0; lvl < levels; lvl++ {
			side := 2 * radius * float32(lvl+1) / float32(levels)
			r.cascadeExtents = append(r.cascadeExtents, mgl32.Vec2{side, side})
		}
	}
	r.detector.ObserveCascades(r.cascadeExtents)
}

func (r *shadowRenderer) resetCulling() {
	for _, fc := range r.spotCulling {
		r.scene.Forget(fc)
		fc.Release()
	}
	for _, faces := range r.pointCulling {
		for _, fc := range faces {
			r.scene.Forget(fc)
			fc.Release()
		}
	}
	r.spotCulling, r.pointCulling = nil, nil
	if !r.useCulling {
		return
	}

	for i := range r.pool.SpotMaps() {
		r.spotCulling = append(r.spotCulling, culling.NewFrustumCulling(r.device, culling.WithLabel(fmt.Sprintf("Spot %d", i))))
	}
	for i := range r.pool.CubeMaps() {
		var faces [6]culling.FrustumCulling
		for face := range faces {
			faces[face] = culling.NewFrustumCulling(r.device, culling.WithLabel(fmt.Sprintf("Point %d Face %d", i, face)))
		}
		r.pointCulling = append(r.pointCulling, faces)
	}
}

// prepareRaster recompiles the raster programs and refreshes rasterizer states as needed.
func (r *shadowRenderer) prepareRaster() error {
	defines := r.rasterDefines()
	cubeChanged := r.cubePipeline.SetDefines(defines)
	spotChanged := r.spotPipeline.SetDefines(defines)
	if r.rasterDefinesStale {
		r.cubePipeline.Invalidate()
		r.spotPipeline.Invalidate()
	}
	if r.rasterDefinesStale || cubeChanged || spotChanged {
		r.rasterDefinesStale = false
		r.firstFrame = true
	}

	if err := r.cubePipeline.Prepare(r.device); err != nil {
		return err
	}
	if err := r.spotPipeline.Prepare(r.device); err != nil {
		return err
	}
	if _, err := r.raster.Refresh(r.device); err != nil {
		return err
	}
	return nil
}

func (r *shadowRenderer) rasterDefines() *shader.DefineList {
	return shader.NewDefineList().
		AddFloat("SM_NEAR", r.near).
		AddFloat("SM_FAR", r.far).
		AddUint("CUBE_SM_RESOLUTION", r.sizes.CubeSize).
		AddBool("USE_ALPHA_TEST", r.alphaTest).
		AddUint("_ALPHA_TEST_MODE", r.alphaTestMode)
}

func (r *shadowRenderer) renderPoint(f *frame, l light.Light, slot int) error {
	pos := l.Position()
	cube := r.pool.CubeMaps()[slot]
	rs := r.raster.Get(r.frontFace, r.cullMode)

	for face := range cubeFaces {
		var fc culling.FrustumCulling
		if r.useCulling {
			fc = r.pointCulling[slot][face]
			if l.Changes().Any(light.ChangePosition) || r.firstFrame {
				fc.UpdateLookAt(pos, pos.Add(cubeFaces[face].Target), cubeFaces[face].Up, 1, cubeFaceFov, r.near, r.far)
			}
		}

		err := f.pass(renderer.RenderTarget{
			Color:      cube,
			ColorLayer: uint32(face),
			Depth:      r.pool.ScratchDepth(),
		}, r.cubePipeline.Program(), rs, cubeFaceViewProjection(pos, face, r.near, r.far), fc)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *shadowRenderer) renderSpot(f *frame, l light.Light, slot int) (mgl32.Mat4, error) {
	m := spotViewProjection(l, r.near, r.far)

	var fc culling.FrustumCulling
	if r.useCulling {
		fc = r.spotCulling[slot]
		pos, dir := l.Position(), l.Direction()
		fc.UpdateLookAt(pos, pos.Add(dir), spotUp(dir), 1, spotFov(l), r.near, r.far)
	}

	err := f.pass(renderer.RenderTarget{Depth: r.pool.SpotMaps()[slot]},
		r.spotPipeline.Program(), r.raster.Get(r.frontFace, r.cullMode), m, fc)
	return m, err
}

func (r *shadowRenderer) RebindRequired() bool {
	return r.rebind
}

func (r *shadowRenderer) State() RendererState {
	return r.state
}

func (r *shadowRenderer) Stats() FrameStats {
	return r.stats
}

func (r *shadowRenderer) Pool() *ResourcePool {
	return r.pool
}

func (r *shadowRenderer) Classifier() light.Classifier {
	return r.classifier
}

func (r *shadowRenderer) Detector() *ChangeDetector {
	return r.detector
}

func (r *shadowRenderer) OracleSizing() OracleSizing {
	return OracleSizing{Sizes: r.sizes, CascadeExtents: r.cascadeExtents}
}

func (r *shadowRenderer) Defines() *shader.DefineList {
	cube, spot, cascade := len(r.pool.CubeMaps()), len(r.pool.SpotMaps()), len(r.pool.CascadeMaps())
	kinds := 0
	for _, n := range []int{cube, spot, cascade} {
		if n > 0 {
			kinds++
		}
	}

	return shader.NewDefineList().
		AddBool("MULTIPLE_SHADOW_MAP_TYPES", kinds > 1).
		AddUint("NUM_SHADOW_MAPS_CUBE", uint32(cube)).
		AddUint("NUM_SHADOW_MAPS_SPOT", uint32(spot)).
		AddUint("NUM_SHADOW_MAPS_CASCADE", uint32(cascade)).
		AddUint("CASCADED_LEVEL", r.sizes.CascadeLevelCount).
		AddFloat("SM_NEAR", r.near).
		AddFloat("SM_FAR", r.far).
		AddUint("SM_RESOLUTION", r.sizes.ShadowMapSize).
		AddUint("CUBE_SM_RESOLUTION", r.sizes.CubeSize).
		AddUint("CASCADED_SM_RESOLUTION", r.sizes.CascadeSize).
		AddBool("SM_USE_PCF", r.usePCF)
}

func (r *shadowRenderer) SetShaderData(vars renderer.ShaderVars, frameDim [2]uint32) {
	params := GPUShadowParams{
		SceneCenter:       r.sceneCenter,
		FarPlane:          r.far,
		NearPlane:         r.near,
		DirectionalOffset: r.directionalOffset,
		ShadowMapSize:     r.sizes.ShadowMapSize,
		CubeSize:          r.sizes.CubeSize,
		CascadeSize:       r.sizes.CascadeSize,
		TexelSizeSpot:     texelSize(r.sizes.ShadowMapSize),
		TexelSizeCube:     texelSize(r.sizes.CubeSize),
		TexelSizeCascade:  texelSize(r.sizes.CascadeSize),
		FrameDim:          frameDim,
	}

	vars.SetBytes("gShadowParams", params.Marshal())
	vars.SetTextures("gShadowMapCube", r.pool.CubeMaps())
	vars.SetTextures("gShadowMap", r.pool.SpotMaps())
	vars.SetTextures("gCascadedShadowMap", r.pool.CascadeMaps())
	vars.SetBuffer("gShadowMapVPBuffer", r.pool.ViewProjections().Buffer())
	vars.SetBuffer("gShadowMapIndexMap", r.pool.LightIndexBuffer())
	vars.SetSampler("gShadowSampler", r.sampler)
}

func texelSize(size uint32) float32 {
	if size == 0 {
		return 0
	}
	return 1 / float32(size)
}

func (r *shadowRenderer) SetShadowMapSize(size uint32) {
	r.setSizes(Sizes{size, r.sizes.CubeSize, r.sizes.CascadeSize, r.sizes.CascadeLevelCount})
}

func (r *shadowRenderer) SetCubeSize(size uint32) {
	r.setSizes(Sizes{r.sizes.ShadowMapSize, size, r.sizes.CascadeSize, r.sizes.CascadeLevelCount})
}

func (r *shadowRenderer) SetCascadeSize(size uint32) {
	r.setSizes(Sizes{r.sizes.ShadowMapSize, r.sizes.CubeSize, size, r.sizes.CascadeLevelCount})
}

func (r *shadowRenderer) SetCascadeLevelCount(count uint32) {
	r.setSizes(Sizes{r.sizes.ShadowMapSize, r.sizes.CubeSize, r.sizes.CascadeSize, count})
}

func (r *shadowRenderer) setSizes(s Sizes) {
	s = s.withDefaults()
	if s == r.sizes {
		return
	}
	r.sizes = s
	r.markBuffersStale()
}

func (r *shadowRenderer) markBuffersStale() {
	r.buffersStale = true
	r.state = StateBuffersStale
}

func (r *shadowRenderer) SetNearFar(near, far float32) {
	if near <= 0 || far <= near {
		panic(fmt.Sprintf("shadow: invalid near/far planes %v/%v", near, far))
	}
	if near == r.near && far == r.far {
		return
	}
	r.near, r.far = near, far
	r.markBuffersStale()
}

func (r *shadowRenderer) SetBias(bias int32, slope float32) {
	r.bias, r.slope = bias, slope
	r.raster.SetBias(bias, slope)
	if r.raster.Dirty() {
		r.firstFrame = true
	}
}

func (r *shadowRenderer) SetCullMode(mode renderer.CullMode) {
	if mode == r.cullMode {
		return
	}
	r.cullMode = mode
	r.firstFrame = true
}

func (r *shadowRenderer) SetAlphaTest(enabled bool, mode uint32) {
	if enabled == r.alphaTest && mode == r.alphaTestMode {
		return
	}
	r.alphaTest, r.alphaTestMode = enabled, mode
	r.rasterDefinesStale = true
	r.state = StateRasterDefinesStale
}

func (r *shadowRenderer) SetPCF(enabled bool) {
	r.usePCF = enabled
}

func (r *shadowRenderer) SetUseFrustumCulling(enabled bool) {
	if enabled == r.useCulling {
		return
	}
	r.useCulling = enabled
	r.resetCulling()
	r.firstFrame = true
}

func (r *shadowRenderer) Reset() {
	r.pool.Release()
	r.markBuffersStale()
}

func (r *shadowRenderer) Release() {
	r.useCulling = false
	r.resetCulling()
	r.pool.Release()
	r.raster.Release()
	r.cubePipeline.Release()
	r.spotPipeline.Release()
	if r.sampler != nil {
		r.sampler.Release()
		r.sampler = nil
	}
}

// frame records the passes of one Update on a lazily created encoder.
type frame struct {
	r   *shadowRenderer
	enc renderer.Encoder
}

func (f *frame) encoder() (renderer.Encoder, error) {
	if f.enc != nil {
		return f.enc, nil
	}
	enc, err := f.r.device.CreateEncoder("Shadow Frame")
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow encoder: %w", err)
	}
	f.enc = enc
	return enc, nil
}

// pass culls into fc, if any, and records one depth pass drawing the scene.
func (f *frame) pass(target renderer.RenderTarget, prog renderer.Program, rs renderer.RasterizerState, vp mgl32.Mat4, fc culling.FrustumCulling) error {
	enc, err := f.encoder()
	if err != nil {
		return err
	}
	if fc != nil {
		if err := f.r.scene.Cull(enc, fc); err != nil {
			return fmt.Errorf("failed to cull shadow pass: %w", err)
		}
	}

	pass := enc.BeginDepthPass(target)
	pass.SetProgram(prog, rs)
	pass.SetViewProjection(vp)
	draws, err := f.r.scene.Rasterize(pass, fc)
	pass.End()
	if err != nil {
		return fmt.Errorf("failed to rasterize shadow pass: %w", err)
	}

	f.r.stats.Passes++
	f.r.stats.Draws += draws
	return nil
}

func (f *frame) submit() error {
	if f.enc == nil {
		return nil
	}
	if err := f.enc.Submit(); err != nil {
		return fmt.Errorf("failed to submit shadow passes: %w", err)
	}
	return nil
}
