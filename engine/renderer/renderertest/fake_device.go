// Package renderertest provides a recording renderer.Device for tests that run without a GPU.
package renderertest

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrInjected is returned by the fake when a failure has been armed.
var ErrInjected = errors.New("renderertest: injected failure")

// Texture is a fake texture.
type Texture struct {
	Desc     renderer.TextureDescriptor
	Released bool
}

func (t *Texture) Descriptor() renderer.TextureDescriptor { return t.Desc }
func (t *Texture) Release()                               { t.Released = true }

// Buffer is a fake buffer backed by host memory.
type Buffer struct {
	Desc     renderer.BufferDescriptor
	Data     []byte
	Released bool
}

func (b *Buffer) Descriptor() renderer.BufferDescriptor { return b.Desc }
func (b *Buffer) Release()                              { b.Released = true }

// Sampler is a fake sampler.
type Sampler struct {
	Desc     renderer.SamplerDescriptor
	Released bool
}

func (s *Sampler) Descriptor() renderer.SamplerDescriptor { return s.Desc }
func (s *Sampler) Release()                               { s.Released = true }

// RasterizerState is a fake rasterizer state.
type RasterizerState struct {
	Desc     renderer.RasterizerDescriptor
	Released bool
}

func (r *RasterizerState) Descriptor() renderer.RasterizerDescriptor { return r.Desc }
func (r *RasterizerState) Release()                                  { r.Released = true }

// Program is a fake compiled program.
type Program struct {
	Desc     renderer.ProgramDescriptor
	Released bool
}

func (p *Program) Descriptor() renderer.ProgramDescriptor { return p.Desc }
func (p *Program) Release()                               { p.Released = true }

// Write records one WriteBuffer call.
type Write struct {
	Buffer *Buffer
	Offset uint64
	Size   uint64
}

// Copy records one CopyBufferToBuffer call.
type Copy struct {
	Src       *Buffer
	SrcOffset uint64
	Dst       *Buffer
	DstOffset uint64
	Size      uint64
}

// Pass records one depth pass.
type Pass struct {
	Target         renderer.RenderTarget
	Program        renderer.Program
	Rasterizer     renderer.RasterizerState
	ViewProjection mgl32.Mat4
	Draws          int
	Ended          bool
}

// Device is a recording renderer.Device. Copies are applied to the destination
// buffer's host memory when recorded.
type Device struct {
	InFlight int

	Textures   []*Texture
	Buffers    []*Buffer
	Samplers   []*Sampler
	Rasterizer []*RasterizerState
	Programs   []*Program

	Writes  []Write
	Copies  []Copy
	Passes  []*Pass
	Submits int

	// FailTextures makes the next CreateTexture calls fail while positive.
	FailTextures int

	Released bool
}

var _ renderer.Device = &Device{}

// NewDevice creates a fake device with the given frames in flight.
func NewDevice(framesInFlight int) *Device {
	return &Device{InFlight: framesInFlight}
}

func (d *Device) CreateTexture(desc renderer.TextureDescriptor) (renderer.Texture, error) {
	if d.FailTextures > 0 {
		d.FailTextures--
		return nil, ErrInjected
	}
	t := &Texture{Desc: desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateBuffer(desc renderer.BufferDescriptor) (renderer.Buffer, error) {
	b := &Buffer{Desc: desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateSampler(desc renderer.SamplerDescriptor) (renderer.Sampler, error) {
	s := &Sampler{Desc: desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateRasterizerState(desc renderer.RasterizerDescriptor) (renderer.RasterizerState, error) {
	r := &RasterizerState{Desc: desc}
	d.Rasterizer = append(d.Rasterizer, r)
	return r, nil
}

func (d *Device) CreateProgram(desc renderer.ProgramDescriptor) (renderer.Program, error) {
	p := &Program{Desc: desc}
	d.Programs = append(d.Programs, p)
	return p, nil
}

func (d *Device) WriteBuffer(buf renderer.Buffer, offset uint64, data []byte) error {
	b := buf.(*Buffer)
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return errors.New("renderertest: write out of range")
	}
	copy(b.Data[offset:], data)
	d.Writes = append(d.Writes, Write{Buffer: b, Offset: offset, Size: uint64(len(data))})
	return nil
}

func (d *Device) CreateEncoder(label string) (renderer.Encoder, error) {
	return &encoder{device: d}, nil
}

func (d *Device) FramesInFlight() int {
	return d.InFlight
}

func (d *Device) Release() {
	d.Released = true
}

// GPUWork returns the number of recorded writes, copies and passes.
func (d *Device) GPUWork() int {
	return len(d.Writes) + len(d.Copies) + len(d.Passes)
}

// ResetLog clears the recorded writes, copies, passes and submits.
func (d *Device) ResetLog() {
	d.Writes = nil
	d.Copies = nil
	d.Passes = nil
	d.Submits = 0
}

// CopiesTo returns the recorded copies whose destination is dst.
func (d *Device) CopiesTo(dst renderer.Buffer) []Copy {
	var out []Copy
	for _, c := range d.Copies {
		if c.Dst == dst {
			out = append(out, c)
		}
	}
	return out
}

// LiveTextures returns the textures that have not been released.
func (d *Device) LiveTextures() []*Texture {
	var out []*Texture
	for _, t := range d.Textures {
		if !t.Released {
			out = append(out, t)
		}
	}
	return out
}

type encoder struct {
	device *Device
}

func (e *encoder) CopyBufferToBuffer(src renderer.Buffer, srcOffset uint64, dst renderer.Buffer, dstOffset uint64, size uint64) {
	s, t := src.(*Buffer), dst.(*Buffer)
	copy(t.Data[dstOffset:dstOffset+size], s.Data[srcOffset:srcOffset+size])
	e.device.Copies = append(e.device.Copies, Copy{Src: s, SrcOffset: srcOffset, Dst: t, DstOffset: dstOffset, Size: size})
}

func (e *encoder) BeginDepthPass(target renderer.RenderTarget) renderer.Pass {
	p := &Pass{Target: target}
	e.device.Passes = append(e.device.Passes, p)
	return &pass{rec: p}
}

func (e *encoder) Submit() error {
	e.device.Submits++
	return nil
}

type pass struct {
	rec *Pass
}

func (p *pass) SetProgram(prog renderer.Program, rs renderer.RasterizerState) {
	p.rec.Program = prog
	p.rec.Rasterizer = rs
}

func (p *pass) SetViewProjection(vp mgl32.Mat4) {
	p.rec.ViewProjection = vp
}

func (p *pass) SetGeometry(vertices, indices renderer.Buffer) {}

func (p *pass) DrawIndexedIndirect(args renderer.Buffer, offset uint64) {
	p.rec.Draws++
}

func (p *pass) End() {
	p.rec.Ended = true
}
