package scene

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/culling"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestScene(dev *renderertest.Device, options ...SceneBuilderOption) Scene {
	return NewScene("test", dev, camera.NewCamera(), append([]SceneBuilderOption{WithCullWorkers(2)}, options...)...)
}

func TestAddBoxAndBounds(t *testing.T) {
	s := newTestScene(renderertest.NewDevice(2))
	s.AddBox(mgl32.Vec3{0, 0, -10}, mgl32.Vec3{1, 1, 1})
	idx := s.AddBox(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{1, 1, 1})
	if idx != 1 {
		t.Fatalf("second AddBox index = %d, want 1", idx)
	}

	ds := s.Drawables()
	if ds[1].Args.FirstIndex != 36 || ds[1].Args.BaseVertex != 8 || ds[1].Args.IndexCount != 36 {
		t.Errorf("second drawable args = %+v", ds[1].Args)
	}
	if !ds[0].Bounds.Center.ApproxEqual(mgl32.Vec3{0, 0, -10}) || !ds[0].Bounds.Extent.ApproxEqual(mgl32.Vec3{1, 1, 1}) {
		t.Errorf("first drawable bounds = %+v", ds[0].Bounds)
	}

	center, radius := s.Bounds()
	if !center.ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("Bounds center = %v, want origin", center)
	}
	want := float32(math.Sqrt(492) / 2)
	if math.Abs(float64(radius-want)) > 1e-4 {
		t.Errorf("Bounds radius = %v, want %v", radius, want)
	}
}

func TestBoundsOverride(t *testing.T) {
	s := newTestScene(renderertest.NewDevice(2), WithBounds(mgl32.Vec3{1, 2, 3}, 50))
	s.AddBox(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	center, radius := s.Bounds()
	if center != (mgl32.Vec3{1, 2, 3}) || radius != 50 {
		t.Errorf("Bounds = %v %v, want override", center, radius)
	}
}

func TestCullAndRasterize(t *testing.T) {
	dev := renderertest.NewDevice(2)
	s := newTestScene(dev)
	for i := 0; i < 100; i++ {
		// half of the boxes sit in front of the origin, half behind it
		z := float32(-5 - i/2)
		if i%2 == 1 {
			z = -z
		}
		s.AddBox(mgl32.Vec3{0, 0, z}, mgl32.Vec3{0.5, 0.5, 0.5})
	}

	fc := culling.NewFrustumCulling(dev)
	fc.UpdateLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 1, mgl32.DegToRad(90), 0.1, 100)

	enc, _ := dev.CreateEncoder("test")
	if err := s.Cull(enc, fc); err != nil {
		t.Fatalf("Cull() error = %v", err)
	}
	_, count, valid := fc.DrawBuffer(s.DrawSource())
	if !valid || count != 50 {
		t.Fatalf("DrawBuffer = (%d, %v), want (50, true)", count, valid)
	}

	dev.ResetLog()
	if err := s.Cull(enc, fc); err != nil {
		t.Fatalf("Cull() error = %v", err)
	}
	if dev.GPUWork() != 0 {
		t.Errorf("second Cull with an unchanged frustum recorded %d GPU operations", dev.GPUWork())
	}

	pass := enc.BeginDepthPass(renderer.RenderTarget{})
	drawn, err := s.Rasterize(pass, fc)
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if drawn != 50 || dev.Passes[0].Draws != 50 {
		t.Errorf("drawn = %d, recorded = %d, want 50", drawn, dev.Passes[0].Draws)
	}

	drawn, err = s.Rasterize(pass, nil)
	if err != nil || drawn != 100 {
		t.Errorf("unculled Rasterize = (%d, %v), want (100, nil)", drawn, err)
	}
}

func TestRasterizeStaleCullingPanics(t *testing.T) {
	dev := renderertest.NewDevice(2)
	s := newTestScene(dev)
	s.AddBox(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{1, 1, 1})

	fc := culling.NewFrustumCulling(dev)
	fc.UpdateLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 1, 1, 0.1, 100)
	enc, _ := dev.CreateEncoder("test")
	if err := s.Cull(enc, fc); err != nil {
		t.Fatalf("Cull() error = %v", err)
	}
	s.AddBox(mgl32.Vec3{0, 0, -8}, mgl32.Vec3{1, 1, 1})

	defer func() {
		if recover() == nil {
			t.Error("Rasterize with a draw buffer older than the drawables did not panic")
		}
	}()
	s.Rasterize(enc.BeginDepthPass(renderer.RenderTarget{}), fc)
}

func TestLightsAndEndFrame(t *testing.T) {
	a := light.NewLight(light.LightTypePoint, light.WithID(1))
	b := light.NewLight(light.LightTypePoint, light.WithID(2), light.WithActive(false))
	c := light.NewLight(light.LightTypeDirectional, light.WithID(3))
	s := newTestScene(renderertest.NewDevice(2), WithLights(a, b, c))

	if got := s.ActiveLightCount(); got != 2 {
		t.Errorf("ActiveLightCount = %d, want 2", got)
	}

	s.RemoveLight(b)
	ls := s.Lights()
	if len(ls) != 2 || ls[0].ID() != 1 || ls[1].ID() != 3 {
		t.Errorf("Lights after remove = %v", ls)
	}

	a.SetPosition(mgl32.Vec3{1, 2, 3})
	if a.Changes() == light.ChangeNone {
		t.Fatal("SetPosition raised no change")
	}
	s.EndFrame()
	if a.Changes() != light.ChangeNone {
		t.Errorf("Changes after EndFrame = %v, want none", a.Changes())
	}
}

func TestCullGrowsDrawBufferAfterAddBox(t *testing.T) {
	dev := renderertest.NewDevice(2)
	s := newTestScene(dev)
	s.AddBox(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{1, 1, 1})

	fc := culling.NewFrustumCulling(dev)
	fc.UpdateLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 1, mgl32.DegToRad(90), 0.1, 100)
	enc, _ := dev.CreateEncoder("test")
	if err := s.Cull(enc, fc); err != nil {
		t.Fatalf("Cull() error = %v", err)
	}
	first, _, _ := fc.DrawBuffer(s.DrawSource())

	s.AddBox(mgl32.Vec3{0, 0, -8}, mgl32.Vec3{1, 1, 1})
	if err := s.Cull(enc, fc); err != nil {
		t.Fatalf("Cull() after AddBox error = %v", err)
	}
	if got := fc.DrawBufferCapacity(s.DrawSource()); got != 2 {
		t.Errorf("DrawBufferCapacity = %d, want 2", got)
	}
	buf, count, valid := fc.DrawBuffer(s.DrawSource())
	if !valid || count != 2 {
		t.Fatalf("DrawBuffer = (%d, %v), want (2, true)", count, valid)
	}
	if !first.(*renderertest.Buffer).Released {
		t.Error("the outgrown draw buffer was not released")
	}

	drawn, err := s.Rasterize(enc.BeginDepthPass(renderer.RenderTarget{}), fc)
	if err != nil || drawn != 2 {
		t.Errorf("Rasterize = (%d, %v), want (2, nil)", drawn, err)
	}
	if len(dev.CopiesTo(buf)) != 1 {
		t.Errorf("copies into the resized draw buffer = %d, want 1", len(dev.CopiesTo(buf)))
	}
}

func TestForgetDropsCullBookkeeping(t *testing.T) {
	dev := renderertest.NewDevice(2)
	s := newTestScene(dev)
	s.AddBox(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{1, 1, 1})
	enc, _ := dev.CreateEncoder("test")

	var helpers []culling.FrustumCulling
	for i := 0; i < 3; i++ {
		fc := culling.NewFrustumCulling(dev)
		fc.UpdateLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 1, 1, 0.1, 100)
		if err := s.Cull(enc, fc); err != nil {
			t.Fatalf("Cull() error = %v", err)
		}
		helpers = append(helpers, fc)
	}

	impl := s.(*scene)
	if impl.culledCount() != 3 {
		t.Fatalf("culledCount = %d, want 3", impl.culledCount())
	}
	for _, fc := range helpers {
		s.Forget(fc)
		fc.Release()
	}
	if impl.culledCount() != 0 {
		t.Errorf("culledCount after Forget = %d, want 0", impl.culledCount())
	}
}
