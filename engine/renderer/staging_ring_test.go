package renderer_test

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
)

func TestStagingRingDepthFromFramesInFlight(t *testing.T) {
	dev := renderertest.NewDevice(2)
	ring, err := renderer.NewStagingRing(dev, "ring", 16, 0)
	if err != nil {
		t.Fatalf("NewStagingRing() error = %v", err)
	}
	if ring.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", ring.Depth())
	}
	if got := dev.Buffers[0].Desc.Size; got != 48 {
		t.Errorf("staging buffer size = %d, want 48", got)
	}
}

func TestStagingRingRejectsShallowDepth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewStagingRing() with depth <= frames in flight did not panic")
		}
	}()
	_, _ = renderer.NewStagingRing(renderertest.NewDevice(3), "ring", 16, 3)
}

func TestStagingRingWrapsAfterDepthPlusOne(t *testing.T) {
	dev := renderertest.NewDevice(1)
	ring, err := renderer.NewStagingRing(dev, "ring", 8, 4)
	if err != nil {
		t.Fatalf("NewStagingRing() error = %v", err)
	}
	dst, _ := dev.CreateBuffer(renderer.BufferDescriptor{Size: 8})
	enc, _ := dev.CreateEncoder("test")

	for i := 0; i < ring.Depth()+1; i++ {
		if err := ring.Write(enc, []byte{byte(i), 0, 0, 0}, dst, 0); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	if ring.Wraps() != 1 {
		t.Errorf("Wraps() = %d, want 1", ring.Wraps())
	}
	if ring.Index() != 1 {
		t.Errorf("Index() = %d, want 1", ring.Index())
	}

	last := dev.Copies[len(dev.Copies)-1]
	if last.SrcOffset != 0 || last.Size != 4 {
		t.Errorf("last copy = %+v, want slot 0 with 4 bytes", last)
	}
	if !bytes.Equal(dst.(*renderertest.Buffer).Data[:4], []byte{4, 0, 0, 0}) {
		t.Errorf("destination = %v, want last write", dst.(*renderertest.Buffer).Data[:4])
	}
}

func TestStagingRingOversizedWrite(t *testing.T) {
	dev := renderertest.NewDevice(1)
	ring, _ := renderer.NewStagingRing(dev, "ring", 4, 0)
	dst, _ := dev.CreateBuffer(renderer.BufferDescriptor{Size: 8})
	enc, _ := dev.CreateEncoder("test")

	if err := ring.Write(enc, make([]byte, 8), dst, 0); err == nil {
		t.Error("Write() of 8 bytes into 4-byte slots returned nil error")
	}
	if ring.Index() != 0 {
		t.Errorf("failed Write advanced the ring to %d", ring.Index())
	}
}

func TestMarshalDrawArguments(t *testing.T) {
	args := []renderer.DrawIndexedArguments{
		{IndexCount: 36, InstanceCount: 1, FirstIndex: 0, BaseVertex: -2, FirstInstance: 0},
	}
	buf := renderer.MarshalDrawArguments(args)
	if len(buf) != renderer.DrawIndexedArgumentsSize {
		t.Fatalf("len = %d, want %d", len(buf), renderer.DrawIndexedArgumentsSize)
	}
	if buf[0] != 36 || buf[4] != 1 || buf[12] != 0xFE || buf[15] != 0xFF {
		t.Errorf("unexpected encoding %v", buf)
	}
	if (&args[0]).Size() != renderer.DrawIndexedArgumentsSize {
		t.Errorf("Size() = %d", (&args[0]).Size())
	}
}
