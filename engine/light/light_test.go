package light

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(0)

	tests := []struct {
		name  string
		light Light
		want  ShadowKind
	}{
		{"directional", NewLight(LightTypeDirectional), ShadowKindDirectional},
		{"omni point", NewLight(LightTypePoint), ShadowKindPoint},
		{"wide cone is point", NewLight(LightTypePoint, WithSpotCone(60)), ShadowKindPoint},
		{"narrow cone is spot", NewLight(LightTypePoint, WithSpotCone(30)), ShadowKindSpot},
		{"threshold is spot", NewLight(LightTypePoint, WithOpeningAngle(math.Pi/4)), ShadowKindSpot},
		{"area", NewLight(LightTypeArea), ShadowKindNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.light); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifierThreshold(t *testing.T) {
	l := NewLight(LightTypePoint, WithSpotCone(60))
	if got := NewClassifier(math.Pi / 2).Classify(l); got != ShadowKindSpot {
		t.Errorf("Classify() with pi/2 threshold = %v, want spot", got)
	}
}

func TestSettersRaiseChanges(t *testing.T) {
	l := NewLight(LightTypePoint)
	if l.Changes() != ChangeNone {
		t.Fatalf("new light Changes() = %v, want none", l.Changes())
	}

	l.SetPosition(mgl32.Vec3{1, 2, 3})
	l.SetDirection(mgl32.Vec3{0, -2, 0})
	l.SetOpeningAngle(0.3)
	l.SetActive(false)

	want := ChangePosition | ChangeDirection | ChangeSurfaceArea | ChangeActive
	if l.Changes() != want {
		t.Errorf("Changes() = %v, want %v", l.Changes(), want)
	}
	if d := l.Direction(); d != (mgl32.Vec3{0, -1, 0}) {
		t.Errorf("Direction() = %v, want normalized (0,-1,0)", d)
	}

	l.ClearChanges()
	l.SetPosition(mgl32.Vec3{1, 2, 3})
	if l.Changes() != ChangeNone {
		t.Errorf("setting an unchanged position raised %v", l.Changes())
	}
}

func TestChangesString(t *testing.T) {
	if got := (ChangeActive | ChangeDirection).String(); got != "active|direction" {
		t.Errorf("String() = %q", got)
	}
}
