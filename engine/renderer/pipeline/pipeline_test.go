package pipeline

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/shader"
)

func TestPrepareRecompilesOnlyWhenDefinesChange(t *testing.T) {
	dev := renderertest.NewDevice(2)
	p := NewPipeline("shadow depth",
		WithSource(shader.ShadowDepthSource),
		WithDefines(shader.NewDefineList().AddFloat("SM_NEAR", 0.1).AddFloat("SM_FAR", 60)),
	)

	if err := p.Prepare(dev); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if err := p.Prepare(dev); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.Compiles() != 1 || len(dev.Programs) != 1 {
		t.Fatalf("compiles = %d programs = %d, want 1 and 1", p.Compiles(), len(dev.Programs))
	}

	if p.SetDefines(shader.NewDefineList().AddFloat("SM_FAR", 60).AddFloat("SM_NEAR", 0.1)) {
		t.Error("SetDefines with equal defines reported a change")
	}
	if !p.SetDefines(shader.NewDefineList().AddFloat("SM_NEAR", 0.1).AddFloat("SM_FAR", 100)) {
		t.Fatal("SetDefines with new far plane reported no change")
	}
	if err := p.Prepare(dev); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.Compiles() != 2 {
		t.Errorf("compiles = %d, want 2", p.Compiles())
	}
	if !dev.Programs[0].Released {
		t.Error("previous program was not released")
	}
	if !strings.Contains(p.Program().Descriptor().Source, "const SM_FAR = 100.0;") {
		t.Error("compiled source does not carry the new defines")
	}
}

func TestPrepareReportsPreProcessorErrors(t *testing.T) {
	p := NewPipeline("broken", WithSource("//@oxy:if A\nfn a() {}"))
	if err := p.Prepare(renderertest.NewDevice(2)); err == nil {
		t.Fatal("Prepare() error = nil, want error")
	}
	if !p.Stale() {
		t.Error("pipeline should stay stale after a failed prepare")
	}
}

func TestNewPipelinePanicsWithoutSource(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewPipeline without source did not panic")
		}
	}()
	NewPipeline("empty")
}
