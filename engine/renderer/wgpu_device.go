package renderer

import (
	"cmp"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// vpSlotSize is the stride of one view-projection slot in the uniform arena. WebGPU
// requires dynamic uniform offsets to be 256-byte aligned.
const vpSlotSize = 256

// maxVPSlots bounds how many depth passes one encoder may record.
const maxVPSlots = 4096

// vertexStride is the stride of the float3 position stream used by depth programs.
const vertexStride = 12

type pipelineKey struct {
	program    *wgpuProgram
	rasterizer *wgpuRasterizerState
}

// wgpuDevice is the WebGPU implementation of Device.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	framesInFlight int

	vpArena        *wgpu.Buffer
	vpLayout       *wgpu.BindGroupLayout
	vpBindGroup    *wgpu.BindGroup
	pipelineLayout *wgpu.PipelineLayout
	pipelines      map[pipelineKey]*wgpu.RenderPipeline
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates a WebGPU instance, adapter and device and wraps them as a Device.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - Device: the device
//   - error: if no adapter or device could be acquired
func NewWGPUDevice(options ...DeviceBuilderOption) (Device, error) {
	cfg := &deviceConfig{framesInFlight: DefaultFramesInFlight}
	for _, opt := range options {
		opt(cfg)
	}

	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:             &sync.Mutex{},
		instance:       wgpu.CreateInstance(nil),
		framesInFlight: cfg.framesInFlight,
		pipelines:      map[pipelineKey]*wgpu.RenderPipeline{},
	}

	adapterOpts := &wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	}
	if cfg.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(cfg.surfaceDescriptor)
		adapterOpts.CompatibleSurface = d.surface
	}

	a, err := d.instance.RequestAdapter(adapterOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Shadow Device",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.initViewProjectionArena(); err != nil {
		return nil, err
	}
	return d, nil
}

// initViewProjectionArena creates the dynamic-offset uniform buffer every depth pass
// reads its view-projection matrix from, plus the shared pipeline layout.
func (d *wgpuDevice) initViewProjectionArena() error {
	arena, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Shadow VP Arena",
		Size:  vpSlotSize * maxVPSlots,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create view-projection arena: %w", err)
	}
	d.vpArena = arena

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Shadow VP Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   common.Mat4Size,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create view-projection layout: %w", err)
	}
	d.vpLayout = layout

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Shadow VP Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  arena,
				Offset:  0,
				Size:    common.Mat4Size,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create view-projection bind group: %w", err)
	}
	d.vpBindGroup = bg

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Shadow Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("failed to create shadow pipeline layout: %w", err)
	}
	d.pipelineLayout = pl
	return nil
}

// Release frees the cached pipelines, the view-projection arena and the device.
func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, p := range d.pipelines {
		p.Release()
		delete(d.pipelines, key)
	}
	if d.pipelineLayout != nil {
		d.pipelineLayout.Release()
	}
	if d.vpBindGroup != nil {
		d.vpBindGroup.Release()
	}
	if d.vpLayout != nil {
		d.vpLayout.Release()
	}
	if d.vpArena != nil {
		d.vpArena.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	d.pipelineLayout, d.vpBindGroup, d.vpLayout, d.vpArena = nil, nil, nil, nil
	d.queue, d.device, d.adapter, d.surface = nil, nil, nil, nil
}

func (d *wgpuDevice) FramesInFlight() int {
	return d.framesInFlight
}

func (d *wgpuDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layers := cmp.Or(desc.Layers, 1)
	if desc.Dimension == TextureDimensionCube {
		layers = 6
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        toWGPUTextureFormat(desc.Format),
		Usage:         toWGPUTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label + " View",
		Format:          toWGPUTextureFormat(desc.Format),
		Dimension:       toWGPUViewDimension(desc.Dimension),
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for texture %q: %w", desc.Label, err)
	}

	desc.Layers = layers
	return &wgpuTexture{desc: desc, texture: tex, view: view, layerViews: map[uint32]*wgpu.TextureView{}}, nil
}

func (d *wgpuDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toWGPUBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{desc: desc, buffer: buf}, nil
}

func (d *wgpuDevice) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filter := wgpu.FilterModeNearest
	if desc.Filter == FilterModeLinear {
		filter = wgpu.FilterModeLinear
	}
	sd := &wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	}
	if desc.Compare {
		sd.Compare = wgpu.CompareFunctionLess
	}

	s, err := d.device.CreateSampler(sd)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{desc: desc, sampler: s}, nil
}

// CreateRasterizerState stores the primitive and depth-stencil state a depth pipeline
// is built from. WebGPU bakes rasterizer state into pipelines, so the pipeline for a
// (program, rasterizer) pair is created on first use by a pass.
func (d *wgpuDevice) CreateRasterizerState(desc RasterizerDescriptor) (RasterizerState, error) {
	frontFace := wgpu.FrontFaceCCW
	if desc.FrontFace == FrontFaceCW {
		frontFace = wgpu.FrontFaceCW
	}
	cull := wgpu.CullModeNone
	switch desc.CullMode {
	case CullModeBack:
		cull = wgpu.CullModeBack
	case CullModeFront:
		cull = wgpu.CullModeFront
	}

	return &wgpuRasterizerState{
		desc:   desc,
		device: d,
		primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: frontFace,
			CullMode:  cull,
		},
		depthStencil: wgpu.DepthStencilState{
			Format:              wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled:   true,
			DepthCompare:        wgpu.CompareFunctionLess,
			DepthBias:           desc.DepthBias,
			DepthBiasSlopeScale: desc.SlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	}, nil
}

func (d *wgpuDevice) CreateProgram(desc ProgramDescriptor) (Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile program %q: %w", desc.Label, err)
	}
	return &wgpuProgram{desc: desc, module: module, device: d}, nil
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*wgpuBuffer)
	if !ok || b.buffer == nil {
		return errors.New("write to a buffer not created by this device")
	}
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (d *wgpuDevice) CreateEncoder(label string) (Encoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	return &wgpuEncoder{device: d, encoder: enc}, nil
}

// pipeline returns the render pipeline for a program and rasterizer pair, creating it
// on first use.
func (d *wgpuDevice) pipeline(p *wgpuProgram, rs *wgpuRasterizerState) (*wgpu.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := pipelineKey{program: p, rasterizer: rs}
	if rp, ok := d.pipelines[key]; ok {
		return rp, nil
	}

	depthStencil := rs.depthStencil
	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.desc.Label + " Pipeline",
		Layout: d.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: p.desc.VertexEntry,
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: vertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					},
				},
			},
		},
		Primitive:    rs.primitive,
		DepthStencil: &depthStencil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if p.desc.FragmentEntry != "" {
		desc.Fragment = &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    toWGPUTextureFormat(p.desc.ColorFormat),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		}
	}

	rp, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline for %q: %w", p.desc.Label, err)
	}
	d.pipelines[key] = rp
	return rp, nil
}

// forget drops every cached pipeline built from program or rasterizer state.
func (d *wgpuDevice) forget(program *wgpuProgram, rs *wgpuRasterizerState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, rp := range d.pipelines {
		if (program != nil && k.program == program) || (rs != nil && k.rasterizer == rs) {
			rp.Release()
			delete(d.pipelines, k)
		}
	}
}

type wgpuTexture struct {
	desc       TextureDescriptor
	texture    *wgpu.Texture
	view       *wgpu.TextureView
	layerViews map[uint32]*wgpu.TextureView
}

func (t *wgpuTexture) Descriptor() TextureDescriptor {
	return t.desc
}

// View returns the full-resource view used for shader binding.
func (t *wgpuTexture) View() *wgpu.TextureView {
	return t.view
}

// layerView returns a single-layer 2D view used as a render attachment.
func (t *wgpuTexture) layerView(layer uint32) (*wgpu.TextureView, error) {
	if v, ok := t.layerViews[layer]; ok {
		return v, nil
	}
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s Layer %d", t.desc.Label, layer),
		Format:          toWGPUTextureFormat(t.desc.Format),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, err
	}
	t.layerViews[layer] = v
	return v, nil
}

func (t *wgpuTexture) Release() {
	for layer, v := range t.layerViews {
		v.Release()
		delete(t.layerViews, layer)
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuBuffer struct {
	desc   BufferDescriptor
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Descriptor() BufferDescriptor {
	return b.desc
}

// Raw returns the underlying WebGPU buffer for binding by a consuming pass.
func (b *wgpuBuffer) Raw() *wgpu.Buffer {
	return b.buffer
}

func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuSampler struct {
	desc    SamplerDescriptor
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Descriptor() SamplerDescriptor {
	return s.desc
}

func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuRasterizerState struct {
	desc         RasterizerDescriptor
	primitive    wgpu.PrimitiveState
	depthStencil wgpu.DepthStencilState
	device       *wgpuDevice
}

func (r *wgpuRasterizerState) Descriptor() RasterizerDescriptor {
	return r.desc
}

func (r *wgpuRasterizerState) Release() {
	if r.device != nil {
		r.device.forget(nil, r)
	}
}

type wgpuProgram struct {
	desc   ProgramDescriptor
	module *wgpu.ShaderModule
	device *wgpuDevice
}

func (p *wgpuProgram) Descriptor() ProgramDescriptor {
	return p.desc
}

func (p *wgpuProgram) Release() {
	p.device.forget(p, nil)
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

type wgpuEncoder struct {
	device   *wgpuDevice
	encoder  *wgpu.CommandEncoder
	slot     int
	failures []error
}

func (e *wgpuEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) {
	e.encoder.CopyBufferToBuffer(src.(*wgpuBuffer).buffer, srcOffset, dst.(*wgpuBuffer).buffer, dstOffset, size)
}

func (e *wgpuEncoder) BeginDepthPass(target RenderTarget) Pass {
	desc := &wgpu.RenderPassDescriptor{}

	if target.Depth != nil {
		view, err := target.Depth.(*wgpuTexture).layerView(target.DepthLayer)
		if err != nil {
			e.failures = append(e.failures, fmt.Errorf("failed to create depth attachment view: %w", err))
			return &wgpuPass{encoder: e}
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	if target.Color != nil {
		view, err := target.Color.(*wgpuTexture).layerView(target.ColorLayer)
		if err != nil {
			e.failures = append(e.failures, fmt.Errorf("failed to create color attachment view: %w", err))
			return &wgpuPass{encoder: e}
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 1, G: 1, B: 1, A: 1},
			},
		}
	}

	return &wgpuPass{encoder: e, pass: e.encoder.BeginRenderPass(desc)}
}

func (e *wgpuEncoder) Submit() error {
	defer e.encoder.Release()
	if len(e.failures) > 0 {
		return errors.Join(e.failures...)
	}

	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	e.device.queue.Submit(cb)
	cb.Release()
	return nil
}

type wgpuPass struct {
	encoder *wgpuEncoder
	pass    *wgpu.RenderPassEncoder
	program *wgpuProgram
	raster  *wgpuRasterizerState
}

func (p *wgpuPass) SetProgram(prog Program, rs RasterizerState) {
	if p.pass == nil {
		return
	}
	p.program = prog.(*wgpuProgram)
	p.raster = rs.(*wgpuRasterizerState)

	rp, err := p.encoder.device.pipeline(p.program, p.raster)
	if err != nil {
		p.encoder.failures = append(p.encoder.failures, err)
		return
	}
	p.pass.SetPipeline(rp)
}

func (p *wgpuPass) SetViewProjection(vp mgl32.Mat4) {
	if p.pass == nil {
		return
	}
	if p.encoder.slot >= maxVPSlots {
		p.encoder.failures = append(p.encoder.failures, fmt.Errorf("more than %d depth passes in one encoder", maxVPSlots))
		return
	}
	offset := uint64(p.encoder.slot * vpSlotSize)
	p.encoder.slot++

	data := make([]byte, common.Mat4Size)
	common.MarshalMat4(data, vp)
	p.encoder.device.queue.WriteBuffer(p.encoder.device.vpArena, offset, data)
	p.pass.SetBindGroup(0, p.encoder.device.vpBindGroup, []uint32{uint32(offset)})
}

func (p *wgpuPass) SetGeometry(vertices, indices Buffer) {
	if p.pass == nil {
		return
	}
	p.pass.SetVertexBuffer(0, vertices.(*wgpuBuffer).buffer, 0, wgpu.WholeSize)
	p.pass.SetIndexBuffer(indices.(*wgpuBuffer).buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (p *wgpuPass) DrawIndexedIndirect(args Buffer, offset uint64) {
	if p.pass == nil {
		return
	}
	p.pass.DrawIndexedIndirect(args.(*wgpuBuffer).buffer, offset)
}

func (p *wgpuPass) End() {
	if p.pass == nil {
		return
	}
	p.pass.End()
	p.pass = nil
}

func toWGPUTextureFormat(f TextureFormat) wgpu.TextureFormat {
	if f == TextureFormatR32Float {
		return wgpu.TextureFormatR32Float
	}
	return wgpu.TextureFormatDepth32Float
}

func toWGPUViewDimension(d TextureDimension) wgpu.TextureViewDimension {
	switch d {
	case TextureDimensionCube:
		return wgpu.TextureViewDimensionCube
	case TextureDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	default:
		return wgpu.TextureViewDimension2D
	}
}

func toWGPUTextureUsage(u TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&TextureUsageTextureBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	return out
}

func toWGPUBufferUsage(u BufferUsage) wgpu.BufferUsage {
	pairs := [...]struct {
		in  BufferUsage
		out wgpu.BufferUsage
	}{
		{BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
		{BufferUsageStorage, wgpu.BufferUsageStorage},
		{BufferUsageIndirect, wgpu.BufferUsageIndirect},
		{BufferUsageUniform, wgpu.BufferUsageUniform},
		{BufferUsageVertex, wgpu.BufferUsageVertex},
		{BufferUsageIndex, wgpu.BufferUsageIndex},
	}
	var out wgpu.BufferUsage
	for _, p := range pairs {
		if u&p.in != 0 {
			out |= p.out
		}
	}
	return out
}
