package culling

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
	"github.com/go-gl/mathgl/mgl32"
)

func TestFrustumRoundTrip(t *testing.T) {
	c := NewFrustumCulling(renderertest.NewDevice(2))
	c.CreateFrustum(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{1, 0, 0},
		mgl32.Vec3{0, 1, 0},
		mgl32.Vec3{0, 0, -1},
		1, mgl32.DegToRad(90), 0.1, 100,
	)

	tests := []struct {
		name   string
		center mgl32.Vec3
		want   bool
	}{
		{"in front", mgl32.Vec3{0, 0, -10}, true},
		{"beyond far", mgl32.Vec3{0, 0, -1000}, false},
		{"behind eye", mgl32.Vec3{0, 0, 10}, false},
		{"far left", mgl32.Vec3{-50, 0, -10}, false},
		{"straddling right", mgl32.Vec3{10.5, 0, -10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := common.AABB{Center: tt.center, Extent: mgl32.Vec3{1, 1, 1}}
			if got := c.IsInFrustum(box); got != tt.want {
				t.Errorf("IsInFrustum(%v) = %v, want %v", tt.center, got, tt.want)
			}
		})
	}
}

func TestUpdateFromCameraMatchesLookAt(t *testing.T) {
	dev := renderertest.NewDevice(2)
	cam := camera.NewCamera(
		camera.WithLookAt(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}),
		camera.WithAspect(1.5),
	)

	a := NewFrustumCulling(dev)
	a.UpdateFromCamera(cam)
	b := NewFrustumCulling(dev)
	b.UpdateLookAt(cam.Position(), cam.Target(), cam.Up(), cam.Aspect(), cam.Fov(), cam.Near(), cam.Far())

	fa, fb := a.Frustum(), b.Frustum()
	for i := range fa.Planes {
		if !fa.Planes[i].Normal.ApproxEqual(fb.Planes[i].Normal) {
			t.Errorf("plane %d normal %v != %v", i, fa.Planes[i].Normal, fb.Planes[i].Normal)
		}
	}
	if !a.IsInFrustum(common.AABB{Extent: mgl32.Vec3{1, 1, 1}}) {
		t.Error("origin should be visible from the camera")
	}
}

func TestOrthoLookAt(t *testing.T) {
	c := NewFrustumCulling(renderertest.NewDevice(2))
	c.UpdateLookAtOrtho(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}, -5, 5, -5, 5, 0, 20)

	if !c.IsInFrustum(common.AABB{Extent: mgl32.Vec3{1, 1, 1}}) {
		t.Error("box below the ortho eye should be inside")
	}
	if c.IsInFrustum(common.AABB{Center: mgl32.Vec3{20, 0, 0}, Extent: mgl32.Vec3{1, 1, 1}}) {
		t.Error("box outside the ortho extents should be outside")
	}
}

func TestDrawBufferRingWraps(t *testing.T) {
	dev := renderertest.NewDevice(2)
	c := NewFrustumCulling(dev)
	if err := c.CreateDrawBuffer(7, 4); err != nil {
		t.Fatalf("CreateDrawBuffer() error = %v", err)
	}
	enc, _ := dev.CreateEncoder("test")

	args := []renderer.DrawIndexedArguments{{IndexCount: 36, InstanceCount: 1}, {IndexCount: 6, InstanceCount: 1}}
	depth := dev.FramesInFlight() + 1
	for i := 0; i < depth+1; i++ {
		if err := c.UpdateDrawBuffer(enc, 7, args); err != nil {
			t.Fatalf("UpdateDrawBuffer() error = %v", err)
		}
	}
	if c.RingWraps(7) != 1 {
		t.Errorf("RingWraps = %d, want 1", c.RingWraps(7))
	}
	if c.RingIndex(7) != 1 {
		t.Errorf("RingIndex = %d, want 1", c.RingIndex(7))
	}

	buf, count, valid := c.DrawBuffer(7)
	if !valid || count != 2 {
		t.Fatalf("DrawBuffer = (%d, %v), want (2, true)", count, valid)
	}
	copies := dev.CopiesTo(buf)
	if len(copies) != depth+1 {
		t.Fatalf("copies = %d, want %d", len(copies), depth+1)
	}
	for _, cp := range copies {
		if cp.DstOffset != 0 || cp.Size != 2*renderer.DrawIndexedArgumentsSize {
			t.Errorf("copy = %+v, want offset 0 size %d", cp, 2*renderer.DrawIndexedArgumentsSize)
		}
	}
}

func TestZeroCountIsValidAndInvalidation(t *testing.T) {
	dev := renderertest.NewDevice(1)
	c := NewFrustumCulling(dev)
	if err := c.CreateDrawBuffer(1, 2); err != nil {
		t.Fatalf("CreateDrawBuffer() error = %v", err)
	}

	if _, _, valid := c.DrawBuffer(1); valid {
		t.Fatal("fresh draw buffer should not be valid")
	}

	enc, _ := dev.CreateEncoder("test")
	dev.ResetLog()
	if err := c.UpdateDrawBuffer(enc, 1, nil); err != nil {
		t.Fatalf("UpdateDrawBuffer() error = %v", err)
	}
	_, count, valid := c.DrawBuffer(1)
	if !valid || count != 0 {
		t.Errorf("DrawBuffer = (%d, %v), want (0, true)", count, valid)
	}
	if dev.GPUWork() != 0 {
		t.Errorf("zero-count update recorded %d GPU operations", dev.GPUWork())
	}

	c.UpdateLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 1, 1, 0.1, 10)
	if _, _, valid := c.DrawBuffer(1); valid {
		t.Error("frustum update should invalidate draw buffers")
	}

	err := c.UpdateDrawBuffer(enc, 1, make([]renderer.DrawIndexedArguments, 3))
	if err == nil {
		t.Error("UpdateDrawBuffer over capacity should fail")
	}
}

func TestResizeDrawBuffer(t *testing.T) {
	dev := renderertest.NewDevice(2)
	c := NewFrustumCulling(dev)
	if got := c.DrawBufferCapacity(3); got != 0 {
		t.Errorf("DrawBufferCapacity of an unknown source = %d, want 0", got)
	}
	if err := c.CreateDrawBuffer(3, 1); err != nil {
		t.Fatalf("CreateDrawBuffer() error = %v", err)
	}
	old, _, _ := c.DrawBuffer(3)

	enc, _ := dev.CreateEncoder("test")
	args := []renderer.DrawIndexedArguments{{IndexCount: 36, InstanceCount: 1}, {IndexCount: 6, InstanceCount: 1}}
	if err := c.UpdateDrawBuffer(enc, 3, args); err == nil {
		t.Fatal("UpdateDrawBuffer over capacity did not fail")
	}

	if err := c.ResizeDrawBuffer(3, 2); err != nil {
		t.Fatalf("ResizeDrawBuffer() error = %v", err)
	}
	if !old.(*renderertest.Buffer).Released {
		t.Error("ResizeDrawBuffer did not release the old buffer")
	}
	if got := c.DrawBufferCapacity(3); got != 2 {
		t.Errorf("DrawBufferCapacity = %d, want 2", got)
	}
	if _, _, valid := c.DrawBuffer(3); valid {
		t.Error("resized draw buffer should start invalid")
	}
	if err := c.UpdateDrawBuffer(enc, 3, args); err != nil {
		t.Fatalf("UpdateDrawBuffer() after resize error = %v", err)
	}
	if _, count, valid := c.DrawBuffer(3); !valid || count != 2 {
		t.Errorf("DrawBuffer = (%d, %v), want (2, true)", count, valid)
	}
}
