package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"go.uber.org/zap"
)

// ResourcePool owns the shadow map textures, the light index map and the spot
// view-projection table. Resources are only ever rebuilt wholesale.
type ResourcePool struct {
	device     renderer.Device
	classifier light.Classifier
	detector   *ChangeDetector
	cursor     Cursor

	sizes Sizes
	kinds []light.ShadowKind

	cubeMaps     []renderer.Texture
	spotMaps     []renderer.Texture
	cascadeMaps  []renderer.Texture
	scratchDepth renderer.Texture

	indexMap    []uint32
	indexBuffer renderer.Buffer
	vp          *ViewProjectionTable

	built          bool
	resetRequested bool
	rebuilds       int
}

// NewResourcePool creates an empty pool. Nothing is allocated until the first Rebuild.
//
// Parameters:
//   - device: the device resources are allocated on
//   - classifier: the shared light classifier
//   - detector: the shared change detector
//
// Returns:
//   - *ResourcePool: the pool
func NewResourcePool(device renderer.Device, classifier light.Classifier, detector *ChangeDetector) *ResourcePool {
	if device == nil {
		panic("shadow: NewResourcePool requires a non-nil Device")
	}
	if detector == nil {
		detector = NewChangeDetector()
	}
	return &ResourcePool{device: device, classifier: classifier, detector: detector}
}

// Rebuild reallocates every shadow resource when this is the first rebuild, the light
// count or a resolution changed, or a reset was requested. Otherwise it does nothing.
//
// Parameters:
//   - lights: the ordered scene lights
//   - sizes: the shadow resolutions, zero fields take defaults
//
// Returns:
//   - bool: true if the resources were rebuilt
//   - error: if an allocation failed, in which case the pool holds no resources
func (p *ResourcePool) Rebuild(lights []light.Light, sizes Sizes) (bool, error) {
	if len(lights) == 0 {
		return false, nil
	}

	sizes = sizes.withDefaults()
	p.detector.Observe(lights, sizes)
	obs := p.detector.Consume(&p.cursor)
	if p.built && !p.resetRequested && !obs.LightCount && !obs.Resolution {
		return false, nil
	}

	p.release()
	p.resetRequested = false
	p.sizes = sizes
	p.kinds = p.classifier.ClassifyAll(lights)

	if err := p.allocate(); err != nil {
		p.release()
		return false, err
	}
	p.built = true
	p.rebuilds++

	logger.L().Info("rebuilt shadow resources",
		zap.Int("lights", len(lights)),
		zap.Int("cube", len(p.cubeMaps)),
		zap.Int("spot", len(p.spotMaps)),
		zap.Int("cascade", len(p.cascadeMaps)),
		zap.Uint32("shadowMapSize", sizes.ShadowMapSize),
		zap.Uint32("cubeSize", sizes.CubeSize),
	)
	return true, nil
}

func (p *ResourcePool) allocate() error {
	p.indexMap = make([]uint32, len(p.kinds))
	for i, kind := range p.kinds {
		var err error
		switch kind {
		case light.ShadowKindPoint:
			p.indexMap[i] = uint32(len(p.cubeMaps))
			err = p.appendTexture(&p.cubeMaps, renderer.TextureDescriptor{
				Label:     fmt.Sprintf("Shadow Cube %d", len(p.cubeMaps)),
				Width:     p.sizes.CubeSize,
				Height:    p.sizes.CubeSize,
				Layers:    6,
				Format:    renderer.TextureFormatR32Float,
				Dimension: renderer.TextureDimensionCube,
				Usage:     renderer.TextureUsageRenderAttachment | renderer.TextureUsageTextureBinding,
			})
		case light.ShadowKindSpot:
			p.indexMap[i] = uint32(len(p.spotMaps))
			err = p.appendTexture(&p.spotMaps, renderer.TextureDescriptor{
				Label:     fmt.Sprintf("Shadow Spot %d", len(p.spotMaps)),
				Width:     p.sizes.ShadowMapSize,
				Height:    p.sizes.ShadowMapSize,
				Layers:    1,
				Format:    renderer.TextureFormatDepth32Float,
				Dimension: renderer.TextureDimension2D,
				Usage:     renderer.TextureUsageRenderAttachment | renderer.TextureUsageTextureBinding,
			})
		case light.ShadowKindDirectional:
			p.indexMap[i] = uint32(len(p.cascadeMaps))
			err = p.appendTexture(&p.cascadeMaps, renderer.TextureDescriptor{
				Label:     fmt.Sprintf("Shadow Cascade %d", len(p.cascadeMaps)),
				Width:     p.sizes.CascadeSize,
				Height:    p.sizes.CascadeSize,
				Layers:    p.sizes.CascadeLevelCount,
				Format:    renderer.TextureFormatDepth32Float,
				Dimension: renderer.TextureDimension2DArray,
				Usage:     renderer.TextureUsageRenderAttachment | renderer.TextureUsageTextureBinding,
			})
		}
		if err != nil {
			return err
		}
	}

	if len(p.cubeMaps) > 0 {
		scratch, err := p.device.CreateTexture(renderer.TextureDescriptor{
			Label:     "Shadow Cube Scratch Depth",
			Width:     p.sizes.CubeSize,
			Height:    p.sizes.CubeSize,
			Layers:    1,
			Format:    renderer.TextureFormatDepth32Float,
			Dimension: renderer.TextureDimension2D,
			Usage:     renderer.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("failed to create cube scratch depth: %w", err)
		}
		p.scratchDepth = scratch
	}

	buf, err := p.device.CreateBuffer(renderer.BufferDescriptor{
		Label: "Shadow Light Index Map",
		Size:  uint64(max(len(p.indexMap), 1) * 4),
		Usage: renderer.BufferUsageStorage | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create light index map: %w", err)
	}
	p.indexBuffer = buf
	if err := p.device.WriteBuffer(buf, 0, common.MarshalUints(p.indexMap)); err != nil {
		return fmt.Errorf("failed to upload light index map: %w", err)
	}

	vp, err := NewViewProjectionTable(p.device, len(p.spotMaps))
	if err != nil {
		return err
	}
	p.vp = vp
	return nil
}

func (p *ResourcePool) appendTexture(dst *[]renderer.Texture, desc renderer.TextureDescriptor) error {
	tex, err := p.device.CreateTexture(desc)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", desc.Label, err)
	}
	*dst = append(*dst, tex)
	return nil
}

// RequestReset forces the next Rebuild to reallocate.
func (p *ResourcePool) RequestReset() {
	p.resetRequested = true
}

// Built reports whether the pool currently holds resources.
func (p *ResourcePool) Built() bool {
	return p.built
}

// Rebuilds returns how many rebuilds have completed.
func (p *ResourcePool) Rebuilds() int {
	return p.rebuilds
}

// Sizes returns the resolutions of the current resources.
func (p *ResourcePool) Sizes() Sizes {
	return p.sizes
}

// Kinds returns the light classification taken at the last rebuild.
func (p *ResourcePool) Kinds() []light.ShadowKind {
	return p.kinds
}

// CubeMaps returns the point light cube maps in scene order.
func (p *ResourcePool) CubeMaps() []renderer.Texture {
	return p.cubeMaps
}

// SpotMaps returns the spot light depth maps in scene order.
func (p *ResourcePool) SpotMaps() []renderer.Texture {
	return p.spotMaps
}

// CascadeMaps returns the directional light cascade arrays in scene order.
func (p *ResourcePool) CascadeMaps() []renderer.Texture {
	return p.cascadeMaps
}

// ScratchDepth returns the depth attachment shared by cube face passes, nil without point lights.
func (p *ResourcePool) ScratchDepth() renderer.Texture {
	return p.scratchDepth
}

// LightIndexMap returns each light's slot within its kind's texture list.
func (p *ResourcePool) LightIndexMap() []uint32 {
	return p.indexMap
}

// LightIndexBuffer returns the GPU mirror of LightIndexMap.
func (p *ResourcePool) LightIndexBuffer() renderer.Buffer {
	p.mustBeBuilt("LightIndexBuffer")
	return p.indexBuffer
}

// ViewProjections returns the spot view-projection table.
func (p *ResourcePool) ViewProjections() *ViewProjectionTable {
	p.mustBeBuilt("ViewProjections")
	return p.vp
}

// Release frees every resource. The next Rebuild reallocates.
func (p *ResourcePool) Release() {
	p.release()
}

func (p *ResourcePool) release() {
	for _, list := range [][]renderer.Texture{p.cubeMaps, p.spotMaps, p.cascadeMaps} {
		for _, t := range list {
			t.Release()
		}
	}
	p.cubeMaps, p.spotMaps, p.cascadeMaps = nil, nil, nil
	if p.scratchDepth != nil {
		p.scratchDepth.Release()
		p.scratchDepth = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
	if p.vp != nil {
		p.vp.Release()
		p.vp = nil
	}
	p.indexMap = nil
	p.built = false
}

func (p *ResourcePool) mustBeBuilt(op string) {
	if !p.built {
		panic(fmt.Sprintf("shadow: %s called before the first rebuild", op))
	}
}
