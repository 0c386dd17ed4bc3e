package scene

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/camera"
	"github.com/Carmen-Shannon/oxy-shadow/engine/culling"
	"github.com/Carmen-Shannon/oxy-shadow/engine/light"
	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// cullChunkSize is the number of drawables one culling task tests.
const cullChunkSize = 64

// Drawable is one indexed draw with its world-space bounds.
type Drawable struct {
	Bounds common.AABB
	Args   renderer.DrawIndexedArguments
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name   string
	device renderer.Device
	source culling.SourceID
	cam    camera.Camera
	lights []light.Light

	positions []float32
	indices   []uint32
	drawables []Drawable

	// drawGen advances whenever the drawable list changes
	drawGen  uint64
	culledAt map[culling.FrustumCulling]uint64

	boundsOverride bool
	boundsCenter   mgl32.Vec3
	boundsRadius   float32

	vertexBuffer   renderer.Buffer
	indexBuffer    renderer.Buffer
	allDrawsBuffer renderer.Buffer
	uploadedGen    uint64
	uploaded       bool

	// cullPool fans the CPU culling of drawables out over reusable workers.
	cullPool    worker.DynamicWorkerPool
	cullWorkers int
}

// Scene is the set of lights, camera and geometry the shadow subsystem renders.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// Camera returns the viewing camera.
	Camera() camera.Camera

	// SetCamera replaces the viewing camera.
	SetCamera(cam camera.Camera)

	// AddLight appends l to the ordered light list.
	AddLight(l light.Light)

	// RemoveLight removes l, preserving the order of the remaining lights.
	RemoveLight(l light.Light)

	// Lights returns a copy of the ordered light list.
	Lights() []light.Light

	// ActiveLightCount returns the number of active lights.
	ActiveLightCount() int

	// AddMesh appends an indexed triangle mesh and returns its drawable index.
	//
	// Parameters:
	//   - positions: the world-space vertex positions
	//   - indices: triangle list indices relative to positions
	//
	// Returns:
	//   - int: the index of the new drawable
	AddMesh(positions []mgl32.Vec3, indices []uint32) int

	// AddBox appends an axis-aligned box mesh and returns its drawable index.
	AddBox(center, halfExtent mgl32.Vec3) int

	// Drawables returns a copy of the drawable list.
	Drawables() []Drawable

	// Bounds returns the scene bounding sphere.
	//
	// Returns:
	//   - mgl32.Vec3: the sphere center
	//   - float32: the sphere radius, 0 for an empty scene
	Bounds() (mgl32.Vec3, float32)

	// DrawSource returns the culling source id the scene's draw arguments are keyed by.
	DrawSource() culling.SourceID

	// Cull tests every drawable against fc's frustum on the worker pool and uploads the
	// survivors to fc's draw buffer. It does nothing when fc already holds a valid draw
	// buffer for the current drawables.
	//
	// Parameters:
	//   - enc: the encoder the upload is recorded on, outside any pass
	//   - fc: the culling helper
	//
	// Returns:
	//   - error: if the draw buffer cannot be created or updated
	Cull(enc renderer.Encoder, fc culling.FrustumCulling) error

	// Rasterize binds the scene geometry on pass and issues one indirect draw per
	// visible drawable. A nil fc draws every drawable.
	//
	// Parameters:
	//   - pass: an open depth pass with program and view-projection already set
	//   - fc: the culling helper previously passed to Cull, or nil
	//
	// Returns:
	//   - int: the number of draws issued
	//   - error: if the geometry cannot be uploaded
	Rasterize(pass renderer.Pass, fc culling.FrustumCulling) (int, error)

	// Forget drops the cull bookkeeping kept for fc. Call it before releasing fc.
	Forget(fc culling.FrustumCulling)

	// EndFrame clears the per-frame change masks of every light.
	EndFrame()

	// Release frees the scene's GPU buffers.
	Release()
}

var _ Scene = &scene{}

// NewScene creates a new Scene. The device and camera are required and NewScene panics
// if either is nil.
//
// Parameters:
//   - name: the name of the scene
//   - device: the device geometry buffers are allocated on
//   - cam: the viewing camera
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, device renderer.Device, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if device == nil {
		panic("scene: NewScene requires a non-nil Device")
	}
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}

	s := &scene{
		mu:          &sync.RWMutex{},
		name:        name,
		device:      device,
		cam:         cam,
		culledAt:    map[culling.FrustumCulling]uint64{},
		cullWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	s.cullPool = worker.NewDynamicWorkerPool(s.cullWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	if cam == nil {
		panic("scene: SetCamera requires a non-nil Camera")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) ActiveLightCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.lights {
		if l.Active() {
			n++
		}
	}
	return n
}

func (s *scene) AddMesh(positions []mgl32.Vec3, indices []uint32) int {
	if len(positions) == 0 || len(indices) == 0 {
		panic(fmt.Sprintf("scene: %q AddMesh requires vertices and indices", s.name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	minP, maxP := positions[0], positions[0]
	for _, p := range positions {
		for i := 0; i < 3; i++ {
			minP[i] = min(minP[i], p[i])
			maxP[i] = max(maxP[i], p[i])
		}
	}

	d := Drawable{
		Bounds: common.NewAABBFromMinMax(minP, maxP),
		Args: renderer.DrawIndexedArguments{
			IndexCount:    uint32(len(indices)),
			InstanceCount: 1,
			FirstIndex:    uint32(len(s.indices)),
			BaseVertex:    int32(len(s.positions) / 3),
		},
	}
	for _, p := range positions {
		s.positions = append(s.positions, p[0], p[1], p[2])
	}
	s.indices = append(s.indices, indices...)
	s.drawables = append(s.drawables, d)
	s.drawGen++
	return len(s.drawables) - 1
}

func (s *scene) AddBox(center, halfExtent mgl32.Vec3) int {
	positions := make([]mgl32.Vec3, 8)
	for i := range positions {
		corner := mgl32.Vec3{-1, -1, -1}
		if i&1 != 0 {
			corner[0] = 1
		}
		if i&2 != 0 {
			corner[1] = 1
		}
		if i&4 != 0 {
			corner[2] = 1
		}
		positions[i] = center.Add(mgl32.Vec3{corner[0] * halfExtent[0], corner[1] * halfExtent[1], corner[2] * halfExtent[2]})
	}
	return s.AddMesh(positions, boxIndices[:])
}

// boxIndices is a counter-clockwise triangle list over the corner numbering of AddBox.
var boxIndices = [36]uint32{
	0, 2, 1, 1, 2, 3, // -z
	4, 5, 6, 5, 7, 6, // +z
	0, 1, 4, 1, 5, 4, // -y
	2, 6, 3, 3, 6, 7, // +y
	0, 4, 2, 2, 4, 6, // -x
	1, 3, 5, 3, 7, 5, // +x
}

func (s *scene) Drawables() []Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Drawable, len(s.drawables))
	copy(out, s.drawables)
	return out
}

func (s *scene) Bounds() (mgl32.Vec3, float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.boundsOverride || len(s.drawables) == 0 {
		return s.boundsCenter, s.boundsRadius
	}

	minP := s.drawables[0].Bounds.Center.Sub(s.drawables[0].Bounds.Extent)
	maxP := s.drawables[0].Bounds.Center.Add(s.drawables[0].Bounds.Extent)
	for _, d := range s.drawables[1:] {
		lo, hi := d.Bounds.Center.Sub(d.Bounds.Extent), d.Bounds.Center.Add(d.Bounds.Extent)
		for i := 0; i < 3; i++ {
			minP[i] = min(minP[i], lo[i])
			maxP[i] = max(maxP[i], hi[i])
		}
	}
	return minP.Add(maxP).Mul(0.5), maxP.Sub(minP).Len() * 0.5
}

func (s *scene) DrawSource() culling.SourceID {
	return s.source
}

func (s *scene) Cull(enc renderer.Encoder, fc culling.FrustumCulling) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.drawables) == 0 {
		return nil
	}
	if fc.DrawBufferCapacity(s.source) < len(s.drawables) {
		if err := fc.ResizeDrawBuffer(s.source, len(s.drawables)); err != nil {
			delete(s.culledAt, fc)
			return err
		}
	}
	if _, _, valid := fc.DrawBuffer(s.source); valid && s.culledAt[fc] == s.drawGen {
		return nil
	}

	visible := make([]bool, len(s.drawables))
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(s.drawables); start += cullChunkSize {
		end := min(start+cullChunkSize, len(s.drawables))
		wg.Add(1)
		id := taskID
		taskID++
		s.cullPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := start; i < end; i++ {
					visible[i] = fc.IsInFrustum(s.drawables[i].Bounds)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	args := make([]renderer.DrawIndexedArguments, 0, len(s.drawables))
	for i, v := range visible {
		if v {
			args = append(args, s.drawables[i].Args)
		}
	}

	if err := fc.UpdateDrawBuffer(enc, s.source, args); err != nil {
		// the draw buffer keeps its previous state, so force a re-cull next time
		delete(s.culledAt, fc)
		return err
	}
	s.culledAt[fc] = s.drawGen
	return nil
}

func (s *scene) Rasterize(pass renderer.Pass, fc culling.FrustumCulling) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.drawables) == 0 {
		return 0, nil
	}
	if err := s.uploadGeometry(); err != nil {
		return 0, err
	}

	args, count := s.allDrawsBuffer, len(s.drawables)
	if fc != nil {
		buf, n, valid := fc.DrawBuffer(s.source)
		if !valid || s.culledAt[fc] != s.drawGen {
			panic(fmt.Sprintf("scene: %q rasterized with a stale draw buffer; call Cull first", s.name))
		}
		args, count = buf, n
	}
	if count == 0 {
		return 0, nil
	}

	pass.SetGeometry(s.vertexBuffer, s.indexBuffer)
	for i := 0; i < count; i++ {
		pass.DrawIndexedIndirect(args, uint64(i)*renderer.DrawIndexedArgumentsSize)
	}
	return count, nil
}

// uploadGeometry recreates the vertex, index and unculled draw buffers whenever the
// drawable list changed since the last upload.
func (s *scene) uploadGeometry() error {
	if s.uploaded && s.uploadedGen == s.drawGen {
		return nil
	}
	s.releaseBuffers()

	vertexData := common.MarshalFloats(s.positions)
	indexData := common.MarshalUints(s.indices)
	drawData := renderer.MarshalDrawArguments(drawArgs(s.drawables))

	uploads := []struct {
		dst   *renderer.Buffer
		label string
		data  []byte
		usage renderer.BufferUsage
	}{
		{&s.vertexBuffer, s.name + " Vertices", vertexData, renderer.BufferUsageVertex},
		{&s.indexBuffer, s.name + " Indices", indexData, renderer.BufferUsageIndex},
		{&s.allDrawsBuffer, s.name + " Draws", drawData, renderer.BufferUsageIndirect | renderer.BufferUsageStorage},
	}
	for _, u := range uploads {
		buf, err := s.device.CreateBuffer(renderer.BufferDescriptor{
			Label: u.label,
			Size:  uint64(len(u.data)),
			Usage: u.usage | renderer.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s buffer: %w", u.label, err)
		}
		*u.dst = buf
		if err := s.device.WriteBuffer(buf, 0, u.data); err != nil {
			return fmt.Errorf("failed to upload %s buffer: %w", u.label, err)
		}
	}

	s.uploaded = true
	s.uploadedGen = s.drawGen
	logger.L().Debug("uploaded scene geometry",
		zap.String("scene", s.name),
		zap.Int("drawables", len(s.drawables)),
		zap.Int("indices", len(s.indices)),
	)
	return nil
}

func drawArgs(ds []Drawable) []renderer.DrawIndexedArguments {
	out := make([]renderer.DrawIndexedArguments, len(ds))
	for i, d := range ds {
		out[i] = d.Args
	}
	return out
}

func (s *scene) Forget(fc culling.FrustumCulling) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.culledAt, fc)
}

// culledCount returns the number of culling helpers with cull bookkeeping.
func (s *scene) culledCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.culledAt)
}

func (s *scene) EndFrame() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lights {
		l.ClearChanges()
	}
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseBuffers()
	s.uploaded = false
}

func (s *scene) releaseBuffers() {
	for _, b := range []*renderer.Buffer{&s.vertexBuffer, &s.indexBuffer, &s.allDrawsBuffer} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}
