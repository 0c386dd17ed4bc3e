// Command shadowdemo opens a window, renders the shadow maps of a small scene every
// frame and logs the shadow workload.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/profiler"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/scene"
	"github.com/Carmen-Shannon/oxy-shadow/engine/shadow"
	"github.com/Carmen-Shannon/oxy-shadow/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

func main() {
	var (
		smSize   = flag.Uint("sm", uint(light.DefaultShadowMapSize), "spot shadow map resolution")
		cubeSize = flag.Uint("cube", uint(light.DefaultCubeShadowMapSize), "point light cube face resolution")
		boxes    = flag.Int("boxes", 64, "number of boxes on the ground grid")
		cull     = flag.Bool("cull", true, "frustum cull shadow passes")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	log := newLogger(*verbose)
	defer log.Sync()
	logger.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log, demoConfig{
		sizes:   shadow.Sizes{ShadowMapSize: uint32(*smSize), CubeSize: uint32(*cubeSize)},
		boxes:   *boxes,
		culling: *cull,
	}); err != nil {
		log.Fatal("shadow demo failed", zap.Error(err))
	}
}

type demoConfig struct {
	sizes   shadow.Sizes
	boxes   int
	culling bool
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return l
}

func run(ctx context.Context, log *zap.Logger, cfg demoConfig) error {
	win, err := window.NewWindow(window.WithTitle("oxy shadows"), window.WithSize(1600, 900))
	if err != nil {
		return err
	}
	defer win.Close()

	device, err := renderer.NewWGPUDevice(renderer.WithSurfaceDescriptor(win.SurfaceDescriptor()))
	if err != nil {
		return err
	}
	defer device.Release()

	frameDim := win.FrameDim()
	cam := camera.NewCamera(
		camera.WithLookAt(mgl32.Vec3{0, 18, 30}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		camera.WithFov(mgl32.DegToRad(50)),
		camera.WithAspect(float32(frameDim[0])/float32(frameDim[1])),
	)

	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithID(1), light.WithPosition(0, 6, 0), light.WithIntensity(40)),
		light.NewLight(light.LightTypePoint, light.WithID(2), light.WithPosition(-10, 12, 10), light.WithDirection(1, -1, -1), light.WithSpotCone(25)),
		light.NewLight(light.LightTypePoint, light.WithID(3), light.WithPosition(10, 12, -10), light.WithDirection(-1, -1, 1), light.WithSpotCone(35)),
		light.NewLight(light.LightTypeDirectional, light.WithID(4), light.WithDirection(0.3, -1, 0.2), light.WithActive(false)),
	}
	scn := scene.NewScene("demo", device, cam, scene.WithLights(lights...))
	defer scn.Release()
	buildGrid(scn, cfg.boxes)

	shadows, err := shadow.NewShadowRenderer(device, scn,
		shadow.WithSizes(cfg.sizes),
		shadow.WithFrustumCulling(cfg.culling),
		shadow.WithBias(2, 1.5),
	)
	if err != nil {
		return err
	}
	defer shadows.Release()

	oracle := shadow.NewShadowMapOracle(device,
		shadow.WithOracleClassifier(shadows.Classifier()),
		shadow.WithOracleChangeDetector(shadows.Detector()),
	)
	defer oracle.Release()

	// stands in for the shading pass that would consume the shadow maps
	bindings := renderer.NewBindingTable()
	prof := profiler.NewProfiler(profiler.WithInterval(2 * time.Second))
	d := &demo{
		cam:           cam,
		lights:        lights,
		shadows:       shadows,
		oracle:        oracle,
		log:           log,
		pcf:           true,
		culling:       cfg.culling,
		oracleEnabled: true,
	}
	win.SetKeyCallback(d.onKey)
	win.SetResizeCallback(func(width, height int) {
		cam.SetAspect(float32(width) / float32(height))
	})

	start := time.Now()
	win.SetFrameCallback(func() {
		if ctx.Err() != nil {
			win.Close()
			return
		}
		if !d.paused {
			d.animate(time.Since(start))
		}

		began := time.Now()
		ready, err := shadows.Update(ctx)
		if err != nil {
			log.Error("shadow update failed", zap.Error(err))
			return
		}
		rebind, err := oracle.Update(scn, win.FrameDim(), shadows.OracleSizing())
		if err != nil {
			log.Error("oracle update failed", zap.Error(err))
			return
		}
		if ready && (shadows.RebindRequired() || rebind) && shadows.Pool().Built() {
			shadows.SetShaderData(bindings, win.FrameDim())
			oracle.SetShaderData(bindings)
			defines := shadows.Defines().Merge(oracle.Defines())
			log.Debug("rebound shadow resources", zap.Strings("defines", defines.Names()))
		}
		scn.EndFrame()

		stats := shadows.Stats()
		prof.Tick(profiler.FrameSample{
			Passes:   stats.Passes,
			Draws:    stats.Draws,
			Lights:   stats.PointLightsRendered + stats.SpotLightsRendered,
			Rebuilt:  stats.Rebuilt,
			Duration: time.Since(began),
		})
	})

	win.Run()
	return nil
}

// buildGrid places a ground slab and n boxes of varying height on a square grid.
func buildGrid(scn scene.Scene, n int) {
	scn.AddBox(mgl32.Vec3{0, -0.5, 0}, mgl32.Vec3{20, 0.5, 20})
	side := int(math.Ceil(math.Sqrt(float64(n))))
	spacing := float32(36) / float32(max(side, 1))
	for i := 0; i < n; i++ {
		x := -18 + spacing*(float32(i%side)+0.5)
		z := -18 + spacing*(float32(i/side)+0.5)
		h := 0.5 + float32(i%5)*0.4
		scn.AddBox(mgl32.Vec3{x, h, z}, mgl32.Vec3{spacing * 0.25, h, spacing * 0.25})
	}
}

type demo struct {
	cam     camera.Camera
	lights  []light.Light
	shadows shadow.ShadowRenderer
	oracle  shadow.ShadowMapOracle
	log     *zap.Logger

	paused        bool
	pcf           bool
	culling       bool
	oracleEnabled bool
}

// animate orbits the point light and sweeps the first spot.
func (d *demo) animate(t time.Duration) {
	s := float32(t.Seconds())
	d.lights[0].SetPosition(mgl32.Vec3{8 * float32(math.Cos(float64(s*0.5))), 6, 8 * float32(math.Sin(float64(s*0.5)))})
	d.lights[1].SetDirection(mgl32.Vec3{1, -1, -1 + 0.5*float32(math.Sin(float64(s)))}.Normalize())
}

func (d *demo) onKey(key common.Key) {
	switch key {
	case common.Key1, common.Key2, common.Key3, common.Key4:
		l := d.lights[key-common.Key1]
		l.SetActive(!l.Active())
		d.log.Info("toggled light", zap.Uint32("light", l.ID()), zap.Bool("active", l.Active()))
	case common.KeySpace:
		d.paused = !d.paused
	case common.KeyP:
		d.pcf = !d.pcf
		d.shadows.SetPCF(d.pcf)
	case common.KeyC:
		d.culling = !d.culling
		d.shadows.SetUseFrustumCulling(d.culling)
	case common.KeyO:
		d.oracleEnabled = !d.oracleEnabled
		d.oracle.SetEnabled(d.oracleEnabled)
	case common.KeyR:
		d.shadows.Reset()
	case common.KeyUp, common.KeyDown:
		sizes := d.shadows.OracleSizing().Sizes
		next := sizes.ShadowMapSize * 2
		if key == common.KeyDown {
			next = max(sizes.ShadowMapSize/2, 256)
		}
		d.shadows.SetShadowMapSize(min(next, 8192))
		d.log.Info("resized spot shadow maps", zap.Uint32("size", min(next, 8192)))
	case common.KeyLeft, common.KeyRight:
		fov := d.cam.Fov() + mgl32.DegToRad(5)
		if key == common.KeyLeft {
			fov = d.cam.Fov() - mgl32.DegToRad(5)
		}
		d.cam.SetFov(mgl32.Clamp(fov, mgl32.DegToRad(20), mgl32.DegToRad(100)))
	}
}
