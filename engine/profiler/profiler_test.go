package profiler

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProfilerReportsAtInterval(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clock := time.Unix(0, 0)
	p := NewProfiler(
		WithInterval(time.Second),
		WithClock(func() time.Time { return clock }),
		WithLogger(zap.New(core)),
	)

	for i := 0; i < 3; i++ {
		clock = clock.Add(250 * time.Millisecond)
		if p.Tick(FrameSample{Passes: 7, Draws: 2, Lights: 2, Duration: time.Millisecond}) {
			t.Fatalf("Tick() reported after %d frames", i+1)
		}
	}
	clock = clock.Add(250 * time.Millisecond)
	if !p.Tick(FrameSample{Passes: 1, Draws: 1, Lights: 1, Rebuilt: true, Duration: 5 * time.Millisecond}) {
		t.Fatal("Tick() did not report after the interval")
	}

	r := p.Last()
	if r.Frames != 4 || r.Passes != 22 || r.Draws != 7 || r.Lights != 7 || r.Rebuilds != 1 {
		t.Errorf("Last() = %+v", r)
	}
	if r.FPS != 4 {
		t.Errorf("FPS = %v, want 4", r.FPS)
	}
	if r.MaxUpdate != 5*time.Millisecond || r.AvgUpdate != 2*time.Millisecond {
		t.Errorf("update times = avg %v max %v", r.AvgUpdate, r.MaxUpdate)
	}
	if logs.FilterMessage("frame report").Len() != 1 {
		t.Errorf("logged %d reports, want 1", logs.FilterMessage("frame report").Len())
	}

	clock = clock.Add(100 * time.Millisecond)
	p.Tick(FrameSample{})
	if logs.Len() != 1 {
		t.Error("Tick() reported before the next interval")
	}
}
