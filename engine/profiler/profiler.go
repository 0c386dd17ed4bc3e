package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"go.uber.org/zap"
)

// FrameSample is the shadow work of one frame.
type FrameSample struct {
	Passes   int
	Draws    int
	Lights   int // lights whose shadow maps were re-rendered
	Rebuilt  bool
	Duration time.Duration // CPU time spent recording the shadow update
}

// Report is the aggregate of every frame since the previous report.
type Report struct {
	FPS           float64
	Frames        int
	Passes        int
	Draws         int
	Lights        int
	Rebuilds      int
	AvgUpdate     time.Duration
	MaxUpdate     time.Duration
	HeapMB        float64
	AllocRateMB   float64
	GCCount       uint32
	MaxGCPauseUs  uint64
	LastGCPauseUs uint64
}

// Profiler aggregates frame samples and logs a Report at a fixed interval.
type Profiler struct {
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	lastTime       time.Time
	current        Report
	totalUpdate    time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a Profiler. The interval defaults to one second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Named("profiler")
	}
	p.lastTime = p.now()
	return p
}

// Tick records one frame and logs a Report once the interval has elapsed.
//
// Parameters:
//   - sample: the shadow work of the frame
//
// Returns:
//   - bool: true if a report was logged this tick
func (p *Profiler) Tick(sample FrameSample) bool {
	p.current.Frames++
	p.current.Passes += sample.Passes
	p.current.Draws += sample.Draws
	p.current.Lights += sample.Lights
	if sample.Rebuilt {
		p.current.Rebuilds++
	}
	p.totalUpdate += sample.Duration
	p.current.MaxUpdate = max(p.current.MaxUpdate, sample.Duration)

	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval || elapsed <= 0 {
		return false
	}

	r := p.current
	r.FPS = float64(r.Frames) / elapsed.Seconds()
	r.AvgUpdate = p.totalUpdate / time.Duration(r.Frames)
	p.readMemory(&r, elapsed)

	p.log.Info("frame report",
		zap.Float64("fps", r.FPS),
		zap.Int("shadowPasses", r.Passes),
		zap.Int("shadowDraws", r.Draws),
		zap.Int("lightsRendered", r.Lights),
		zap.Int("rebuilds", r.Rebuilds),
		zap.Duration("avgUpdate", r.AvgUpdate),
		zap.Duration("maxUpdate", r.MaxUpdate),
		zap.Float64("heapMB", r.HeapMB),
		zap.Float64("allocRateMB", r.AllocRateMB),
		zap.Uint32("gc", r.GCCount),
		zap.Uint64("gcPauseMaxUs", r.MaxGCPauseUs),
	)

	p.last = r
	p.current = Report{}
	p.totalUpdate = 0
	p.lastTime = now
	return true
}

// readMemory fills the heap and GC fields of r.
func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		r.LastGCPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			r.MaxGCPauseUs = max(r.MaxGCPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent Report.
func (p *Profiler) Last() Report {
	return p.last
}
