package shadow

import (
	"context"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/culling"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-shadow/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

func newSpot(x, y, z float32) light.Light {
	return light.NewLight(light.LightTypePoint,
		light.WithPosition(x, y, z),
		light.WithDirection(0, -1, 0),
		light.WithSpotCone(30),
	)
}

func newPoint(x, y, z float32) light.Light {
	return light.NewLight(light.LightTypePoint, light.WithPosition(x, y, z))
}

func newTestRenderer(t *testing.T, dev *renderertest.Device, lights []light.Light, options ...ShadowRendererBuilderOption) (ShadowRenderer, scene.Scene) {
	t.Helper()
	scn := scene.NewScene("shadow-test", dev, camera.NewCamera(), scene.WithLights(lights...), scene.WithCullWorkers(2))
	scn.AddBox(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	r, err := NewShadowRenderer(dev, scn, options...)
	if err != nil {
		t.Fatalf("NewShadowRenderer() error = %v", err)
	}
	t.Cleanup(r.Release)
	return r, scn
}

func mustUpdate(t *testing.T, r ShadowRenderer) {
	t.Helper()
	ok, err := r.Update(context.Background())
	if err != nil || !ok {
		t.Fatalf("Update() = %v, %v; want true, nil", ok, err)
	}
}

func TestShadowRendererSpotAndPoint(t *testing.T) {
	dev := renderertest.NewDevice(2)
	spot, point := newSpot(0, 5, 0), newPoint(0, 3, 0)
	r, _ := newTestRenderer(t, dev, []light.Light{spot, point}, WithSizes(Sizes{ShadowMapSize: 1024, CubeSize: 512}))

	mustUpdate(t, r)

	pool := r.Pool()
	if len(pool.SpotMaps()) != 1 || len(pool.CubeMaps()) != 1 {
		t.Fatalf("pool has %d spot and %d cube maps, want 1 and 1", len(pool.SpotMaps()), len(pool.CubeMaps()))
	}
	if w := pool.SpotMaps()[0].Descriptor().Width; w != 1024 {
		t.Errorf("spot map width = %d, want 1024", w)
	}
	if w := pool.CubeMaps()[0].Descriptor().Width; w != 512 {
		t.Errorf("cube map width = %d, want 512", w)
	}

	stats := r.Stats()
	if stats.SpotLightsRendered != 1 || stats.PointLightsRendered != 1 || stats.Passes != 7 || !stats.Rebuilt {
		t.Errorf("Stats() = %+v", stats)
	}
	if !r.RebindRequired() {
		t.Error("RebindRequired() = false after the first rebuild")
	}
	if r.State() != StateRendering {
		t.Errorf("State() = %s, want rendering", r.State())
	}

	vp := pool.ViewProjections()
	copies := dev.CopiesTo(vp.Buffer())
	if len(copies) != 1 || copies[0].Size != 64 {
		t.Fatalf("VP copies = %+v, want one copy of 64 bytes", copies)
	}
	want := spotViewProjection(spot, light.DefaultShadowNear, light.DefaultShadowFar)
	if !vp.Matrix(0).ApproxEqual(want) {
		t.Errorf("VP matrix = %v, want %v", vp.Matrix(0), want)
	}

	cube, scratch := pool.CubeMaps()[0], pool.ScratchDepth()
	layers := map[uint32]bool{}
	for _, p := range dev.Passes {
		if !p.Ended {
			t.Error("pass not ended")
		}
		if p.Target.Color == cube {
			if p.Target.Depth != scratch {
				t.Error("cube face pass does not use the scratch depth")
			}
			layers[p.Target.ColorLayer] = true
		}
	}
	if len(layers) != 6 {
		t.Errorf("cube faces rendered = %d, want 6", len(layers))
	}
	if dev.Submits != 1 {
		t.Errorf("Submits = %d, want 1", dev.Submits)
	}
}

func TestShadowRendererIdempotent(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, scn := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0), newPoint(0, 3, 0)})

	mustUpdate(t, r)
	scn.EndFrame()
	dev.ResetLog()

	mustUpdate(t, r)
	if dev.GPUWork() != 0 || dev.Submits != 0 {
		t.Errorf("second Update recorded %d GPU commands and %d submits, want none", dev.GPUWork(), dev.Submits)
	}
	if r.RebindRequired() {
		t.Error("RebindRequired() = true without a change")
	}
	if r.Pool().Rebuilds() != 1 {
		t.Errorf("Rebuilds() = %d, want 1", r.Pool().Rebuilds())
	}
}

func TestShadowRendererSkipsUnchangedSpot(t *testing.T) {
	dev := renderertest.NewDevice(2)
	still, moving := newSpot(-3, 5, 0), newSpot(3, 5, 0)
	r, scn := newTestRenderer(t, dev, []light.Light{still, moving})

	mustUpdate(t, r)
	vp := r.Pool().ViewProjections()
	before := vp.Matrix(0)
	scn.EndFrame()
	dev.ResetLog()

	moving.SetPosition(mgl32.Vec3{4, 5, 0})
	mustUpdate(t, r)

	if r.Stats().SpotLightsRendered != 1 || len(dev.Passes) != 1 {
		t.Errorf("rendered %d spots in %d passes, want 1 and 1", r.Stats().SpotLightsRendered, len(dev.Passes))
	}
	if vp.WasRendered(0) || !vp.WasRendered(1) {
		t.Errorf("WasRendered = %v %v, want false true", vp.WasRendered(0), vp.WasRendered(1))
	}
	if vp.Matrix(0) != before {
		t.Error("unchanged spot VP entry was overwritten")
	}
	want := spotViewProjection(moving, light.DefaultShadowNear, light.DefaultShadowFar)
	if !vp.Matrix(1).ApproxEqual(want) {
		t.Error("moved spot VP entry was not updated")
	}
	if copies := dev.CopiesTo(vp.Buffer()); len(copies) != 1 || copies[0].Size != 128 {
		t.Errorf("VP copies = %+v, want one copy of 128 bytes", copies)
	}
}

func TestShadowRendererRebindOnLightCountChange(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, scn := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0)})

	mustUpdate(t, r)
	if !r.RebindRequired() {
		t.Fatal("RebindRequired() = false on the first frame")
	}
	scn.EndFrame()

	mustUpdate(t, r)
	if r.RebindRequired() {
		t.Error("RebindRequired() = true on a steady frame")
	}
	scn.EndFrame()

	scn.AddLight(newSpot(2, 5, 0))
	mustUpdate(t, r)
	if !r.RebindRequired() {
		t.Error("RebindRequired() = false after adding a light")
	}
	if len(r.Pool().SpotMaps()) != 2 {
		t.Errorf("SpotMaps() = %d, want 2", len(r.Pool().SpotMaps()))
	}
	scn.EndFrame()

	mustUpdate(t, r)
	if r.RebindRequired() {
		t.Error("RebindRequired() = true on the frame after the transition")
	}
}

func TestShadowRendererClassificationDrift(t *testing.T) {
	dev := renderertest.NewDevice(2)
	l := newSpot(0, 5, 0)
	r, scn := newTestRenderer(t, dev, []light.Light{l})

	mustUpdate(t, r)
	scn.EndFrame()
	dev.ResetLog()

	l.SetOpeningAngle(math.Pi)
	ok, err := r.Update(context.Background())
	if err != nil || ok {
		t.Fatalf("Update() after drift = %v, %v; want false, nil", ok, err)
	}
	if dev.GPUWork() != 0 {
		t.Errorf("drifted Update recorded %d GPU commands, want 0", dev.GPUWork())
	}
	if r.State() != StateBuffersStale {
		t.Errorf("State() = %s, want buffers-stale", r.State())
	}

	mustUpdate(t, r)
	if len(r.Pool().CubeMaps()) != 1 || len(r.Pool().SpotMaps()) != 0 {
		t.Errorf("after rebuild: %d cube, %d spot maps; want 1 and 0", len(r.Pool().CubeMaps()), len(r.Pool().SpotMaps()))
	}
	if r.Stats().Passes != 6 {
		t.Errorf("Passes = %d, want 6", r.Stats().Passes)
	}
}

func TestShadowRendererNoActiveLights(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, _ := newTestRenderer(t, dev, []light.Light{light.NewLight(light.LightTypePoint, light.WithActive(false))})

	mustUpdate(t, r)
	if r.State() != StateIdle {
		t.Errorf("State() = %s, want idle", r.State())
	}
	if dev.GPUWork() != 0 || len(dev.Textures) != 0 {
		t.Errorf("idle Update allocated %d textures and recorded %d commands", len(dev.Textures), dev.GPUWork())
	}
}

func TestShadowRendererCancelledContext(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, _ := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Update(ctx); err == nil {
		t.Fatal("Update() with a cancelled context returned nil error")
	}
	if dev.GPUWork() != 0 {
		t.Errorf("cancelled Update recorded %d GPU commands", dev.GPUWork())
	}
}

func TestShadowRendererAlphaTestRecompiles(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, scn := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0)})

	mustUpdate(t, r)
	scn.EndFrame()
	programs := len(dev.Programs)

	r.SetAlphaTest(true, 1)
	if r.State() != StateRasterDefinesStale {
		t.Errorf("State() = %s, want raster-defines-stale", r.State())
	}
	dev.ResetLog()
	mustUpdate(t, r)

	if len(dev.Programs) != programs+2 {
		t.Errorf("compiled %d programs, want 2", len(dev.Programs)-programs)
	}
	if r.Stats().SpotLightsRendered != 1 {
		t.Error("spot was not re-rendered after the raster defines changed")
	}
	if r.Pool().Rebuilds() != 1 {
		t.Error("alpha test toggle rebuilt the pool")
	}
}

func TestShadowRendererBiasChangeRefreshesStates(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, scn := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0)})

	mustUpdate(t, r)
	scn.EndFrame()
	dev.ResetLog()

	r.SetBias(100, 2)
	mustUpdate(t, r)
	if len(dev.Passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(dev.Passes))
	}
	if d := dev.Passes[0].Rasterizer.Descriptor(); d.DepthBias != 100 || d.SlopeScale != 2 {
		t.Errorf("pass rasterizer = %+v, want the new bias", d)
	}
}

func TestShadowRendererFrustumCulling(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, _ := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0), newPoint(0, 3, 0)}, WithFrustumCulling(true))

	mustUpdate(t, r)
	// the box below the point light is only inside the -Y cube face
	if got := r.Stats().Draws; got != 2 {
		t.Errorf("Draws = %d, want 2", got)
	}
	if r.Stats().Passes != 7 {
		t.Errorf("Passes = %d, want 7", r.Stats().Passes)
	}
}

func TestShadowRendererResizeRebuilds(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, scn := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0)})

	mustUpdate(t, r)
	scn.EndFrame()

	r.SetShadowMapSize(512)
	if r.State() != StateBuffersStale {
		t.Errorf("State() = %s, want buffers-stale", r.State())
	}
	mustUpdate(t, r)
	if w := r.Pool().SpotMaps()[0].Descriptor().Width; w != 512 {
		t.Errorf("spot map width = %d, want 512", w)
	}
	if !r.RebindRequired() {
		t.Error("RebindRequired() = false after a resize")
	}
}

func TestShadowRendererDefinesAndShaderData(t *testing.T) {
	dev := renderertest.NewDevice(2)
	r, _ := newTestRenderer(t, dev, []light.Light{newSpot(0, 5, 0), newPoint(0, 3, 0)})
	mustUpdate(t, r)

	defines := r.Defines()
	for name, want := range map[string]string{
		"MULTIPLE_SHADOW_MAP_TYPES": "true",
		"NUM_SHADOW_MAPS_CUBE":      "1u",
		"NUM_SHADOW_MAPS_SPOT":      "1u",
		"NUM_SHADOW_MAPS_CASCADE":   "0u",
		"SM_USE_PCF":                "true",
	} {
		if got, ok := defines.Get(name); !ok || got != want {
			t.Errorf("define %s = %q, want %q", name, got, want)
		}
	}

	vars := renderer.NewBindingTable()
	r.SetShaderData(vars, [2]uint32{1920, 1080})
	if len(vars.Bytes["gShadowParams"]) != 64 {
		t.Errorf("gShadowParams is %d bytes, want 64", len(vars.Bytes["gShadowParams"]))
	}
	if len(vars.Textures["gShadowMapCube"]) != 1 || len(vars.Textures["gShadowMap"]) != 1 {
		t.Error("shadow map textures not bound")
	}
	if vars.Buffers["gShadowMapVPBuffer"] != r.Pool().ViewProjections().Buffer() {
		t.Error("VP buffer not bound")
	}
	if vars.Buffers["gShadowMapIndexMap"] != r.Pool().LightIndexBuffer() {
		t.Error("index map not bound")
	}
	if vars.Samplers["gShadowSampler"] == nil {
		t.Error("sampler not bound")
	}
}

func TestShadowRendererDirectionalRefreshesVPEveryFrame(t *testing.T) {
	dev := renderertest.NewDevice(2)
	spot := newSpot(0, 5, 0)
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))
	r, scn := newTestRenderer(t, dev, []light.Light{spot, sun})

	mustUpdate(t, r)
	if len(r.Pool().CascadeMaps()) != 1 {
		t.Fatalf("CascadeMaps() = %d, want 1", len(r.Pool().CascadeMaps()))
	}
	vp := r.Pool().ViewProjections()
	before := vp.Matrix(0)
	scn.EndFrame()
	dev.ResetLog()

	mustUpdate(t, r)
	if len(dev.Passes) != 0 || r.Stats().Passes != 0 {
		t.Errorf("unchanged frame recorded %d passes, want 0", len(dev.Passes))
	}
	copies := dev.CopiesTo(vp.Buffer())
	if len(copies) != 1 || copies[0].Size != 64 {
		t.Fatalf("VP copies = %+v, want one copy of 64 bytes", copies)
	}
	if vp.Matrix(0) != before {
		t.Error("spot VP entry changed on an unchanged frame")
	}
	if dev.Submits != 1 {
		t.Errorf("Submits = %d, want 1", dev.Submits)
	}
}

func TestShadowRendererDirectionalOnly(t *testing.T) {
	dev := renderertest.NewDevice(2)
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))
	r, scn := newTestRenderer(t, dev, []light.Light{sun})

	for frame := 0; frame < 2; frame++ {
		mustUpdate(t, r)
		vp := r.Pool().ViewProjections()
		if copies := dev.CopiesTo(vp.Buffer()); len(copies) != 0 {
			t.Errorf("frame %d: VP copies = %d, want 0 without spot lights", frame, len(copies))
		}
		if r.Stats().Passes != 0 || dev.Submits != 0 {
			t.Errorf("frame %d: %d passes and %d submits, want none", frame, r.Stats().Passes, dev.Submits)
		}
		scn.EndFrame()
	}
	if r.State() != StateRendering {
		t.Errorf("State() = %s, want rendering", r.State())
	}
}

// forgetCounter counts the culling helpers the renderer hands back to the scene.
type forgetCounter struct {
	scene.Scene
	forgotten int
}

func (f *forgetCounter) Forget(fc culling.FrustumCulling) {
	f.forgotten++
	f.Scene.Forget(fc)
}

func TestShadowRendererForgetsReleasedCulling(t *testing.T) {
	dev := renderertest.NewDevice(2)
	inner := scene.NewScene("shadow-test", dev, camera.NewCamera(),
		scene.WithLights(newSpot(0, 5, 0), newPoint(0, 3, 0)), scene.WithCullWorkers(2))
	inner.AddBox(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	scn := &forgetCounter{Scene: inner}
	r, err := NewShadowRenderer(dev, scn, WithFrustumCulling(true))
	if err != nil {
		t.Fatalf("NewShadowRenderer() error = %v", err)
	}
	defer r.Release()

	mustUpdate(t, r)
	scn.EndFrame()
	if scn.forgotten != 0 {
		t.Fatalf("forgotten = %d before any rebuild, want 0", scn.forgotten)
	}

	scn.AddLight(newSpot(2, 5, 0))
	mustUpdate(t, r)
	// one spot helper and six point face helpers from the first rebuild
	if scn.forgotten != 7 {
		t.Errorf("forgotten after rebuild = %d, want 7", scn.forgotten)
	}
}
