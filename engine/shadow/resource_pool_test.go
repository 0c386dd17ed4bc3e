package shadow

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
)

func newTestPool(dev *renderertest.Device) *ResourcePool {
	return NewResourcePool(dev, light.NewClassifier(light.DefaultPointThreshold), NewChangeDetector())
}

func TestResourcePoolLightIndexMap(t *testing.T) {
	dev := renderertest.NewDevice(2)
	p := newTestPool(dev)
	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithSpotCone(20)),
		light.NewLight(light.LightTypePoint),
		light.NewLight(light.LightTypeDirectional),
		light.NewLight(light.LightTypePoint, light.WithSpotCone(30)),
		light.NewLight(light.LightTypeArea),
		light.NewLight(light.LightTypePoint),
	}

	rebuilt, err := p.Rebuild(lights, Sizes{ShadowMapSize: 1024, CubeSize: 512})
	if err != nil || !rebuilt {
		t.Fatalf("Rebuild() = %v, %v; want true, nil", rebuilt, err)
	}

	lists := map[light.ShadowKind][]renderer.Texture{
		light.ShadowKindPoint:       p.CubeMaps(),
		light.ShadowKindSpot:        p.SpotMaps(),
		light.ShadowKindDirectional: p.CascadeMaps(),
	}
	want := []uint32{0, 0, 0, 1, 0, 1}
	for i, kind := range p.Kinds() {
		if got := p.LightIndexMap()[i]; got != want[i] {
			t.Errorf("LightIndexMap()[%d] = %d, want %d", i, got, want[i])
		}
		if list, ok := lists[kind]; ok && int(p.LightIndexMap()[i]) >= len(list) {
			t.Errorf("light %d (%s) slot %d out of range %d", i, kind, p.LightIndexMap()[i], len(list))
		}
	}

	if len(p.CubeMaps()) != 2 || len(p.SpotMaps()) != 2 || len(p.CascadeMaps()) != 1 {
		t.Fatalf("maps = %d cube, %d spot, %d cascade", len(p.CubeMaps()), len(p.SpotMaps()), len(p.CascadeMaps()))
	}
	cube := p.CubeMaps()[0].Descriptor()
	if cube.Width != 512 || cube.Layers != 6 || cube.Format != renderer.TextureFormatR32Float || cube.Dimension != renderer.TextureDimensionCube {
		t.Errorf("cube descriptor = %+v", cube)
	}
	if spot := p.SpotMaps()[0].Descriptor(); spot.Width != 1024 || spot.Format != renderer.TextureFormatDepth32Float {
		t.Errorf("spot descriptor = %+v", spot)
	}
	if cascade := p.CascadeMaps()[0].Descriptor(); cascade.Layers != p.Sizes().CascadeLevelCount {
		t.Errorf("cascade layers = %d, want %d", cascade.Layers, p.Sizes().CascadeLevelCount)
	}
	if p.ScratchDepth() == nil {
		t.Error("ScratchDepth() is nil with point lights present")
	}
	if p.ViewProjections().Len() != 2 {
		t.Errorf("ViewProjections().Len() = %d, want 2", p.ViewProjections().Len())
	}
}

func TestResourcePoolRebuildsOnlyOnChange(t *testing.T) {
	dev := renderertest.NewDevice(2)
	p := newTestPool(dev)
	lights := []light.Light{light.NewLight(light.LightTypePoint, light.WithSpotCone(20))}

	if rebuilt, _ := p.Rebuild(nil, DefaultSizes()); rebuilt {
		t.Error("Rebuild() with no lights rebuilt")
	}
	if _, err := p.Rebuild(lights, DefaultSizes()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if p.ScratchDepth() != nil {
		t.Error("ScratchDepth() allocated without point lights")
	}
	if rebuilt, _ := p.Rebuild(lights, DefaultSizes()); rebuilt {
		t.Error("Rebuild() with unchanged lights rebuilt")
	}

	first := p.SpotMaps()[0].(*renderertest.Texture)
	lights = append(lights, light.NewLight(light.LightTypePoint, light.WithSpotCone(25)))
	if rebuilt, _ := p.Rebuild(lights, DefaultSizes()); !rebuilt {
		t.Fatal("Rebuild() after adding a light did not rebuild")
	}
	if !first.Released {
		t.Error("previous spot map not released on rebuild")
	}

	p.RequestReset()
	if rebuilt, _ := p.Rebuild(lights, DefaultSizes()); !rebuilt {
		t.Error("Rebuild() after RequestReset did not rebuild")
	}
	if p.Rebuilds() != 3 {
		t.Errorf("Rebuilds() = %d, want 3", p.Rebuilds())
	}
}

func TestResourcePoolAllocationFailure(t *testing.T) {
	dev := renderertest.NewDevice(2)
	dev.FailTextures = 1
	p := newTestPool(dev)

	_, err := p.Rebuild([]light.Light{light.NewLight(light.LightTypePoint)}, DefaultSizes())
	if !errors.Is(err, renderertest.ErrInjected) {
		t.Fatalf("Rebuild() error = %v, want injected failure", err)
	}
	if p.Built() {
		t.Error("pool reports built after a failed allocation")
	}
	if len(dev.LiveTextures()) != 0 {
		t.Errorf("%d textures leaked after a failed rebuild", len(dev.LiveTextures()))
	}
}

func TestResourcePoolAccessorsPanicBeforeBuild(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ViewProjections() before Rebuild did not panic")
		}
	}()
	newTestPool(renderertest.NewDevice(2)).ViewProjections()
}
