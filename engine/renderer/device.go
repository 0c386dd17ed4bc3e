package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TextureFormat identifies the texel format of a texture.
type TextureFormat int

const (
	// TextureFormatDepth32Float is a 32-bit float depth format.
	TextureFormatDepth32Float TextureFormat = iota
	// TextureFormatR32Float is a single-channel 32-bit float color format.
	TextureFormatR32Float
)

// TextureDimension identifies how the layers of a texture are viewed.
type TextureDimension int

const (
	// TextureDimension2D is a single 2D image.
	TextureDimension2D TextureDimension = iota
	// TextureDimensionCube is a six-layer cube map.
	TextureDimensionCube
	// TextureDimension2DArray is an array of 2D layers.
	TextureDimension2DArray
)

// TextureUsage is a bitmask of the ways a texture may be used.
type TextureUsage uint32

const (
	TextureUsageRenderAttachment TextureUsage = 1 << iota
	TextureUsageTextureBinding
	TextureUsageCopySrc
)

// TextureDescriptor describes a texture to be created.
type TextureDescriptor struct {
	Label     string
	Width     uint32
	Height    uint32
	Layers    uint32
	Format    TextureFormat
	Dimension TextureDimension
	Usage     TextureUsage
}

// Texture is a GPU texture owned by the caller that created it.
type Texture interface {
	// Descriptor returns the descriptor the texture was created with.
	Descriptor() TextureDescriptor
	// Release frees the GPU resource.
	Release()
}

// BufferUsage is a bitmask of the ways a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageCopySrc BufferUsage = 1 << iota
	BufferUsageCopyDst
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
)

// BufferDescriptor describes a buffer to be created.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Buffer is a GPU buffer owned by the caller that created it.
type Buffer interface {
	// Descriptor returns the descriptor the buffer was created with.
	Descriptor() BufferDescriptor
	// Release frees the GPU resource.
	Release()
}

// FilterMode selects texel filtering for a sampler.
type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// SamplerDescriptor describes a sampler to be created.
type SamplerDescriptor struct {
	Label  string
	Filter FilterMode
	// Compare enables a less-than depth comparison sampler.
	Compare bool
}

// Sampler is a GPU sampler.
type Sampler interface {
	Descriptor() SamplerDescriptor
	Release()
}

// CullMode selects which triangle faces are discarded during rasterization.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// CullModes lists every cull mode, in declaration order.
var CullModes = [...]CullMode{CullModeNone, CullModeBack, CullModeFront}

func (c CullMode) String() string {
	switch c {
	case CullModeNone:
		return "none"
	case CullModeBack:
		return "back"
	case CullModeFront:
		return "front"
	default:
		return "unknown"
	}
}

// FrontFace selects the winding order of front-facing triangles.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// RasterizerDescriptor describes a rasterizer configuration for depth passes.
type RasterizerDescriptor struct {
	CullMode   CullMode
	FrontFace  FrontFace
	DepthBias  int32
	SlopeScale float32
}

// RasterizerState is an immutable rasterizer configuration created by a Device.
type RasterizerState interface {
	Descriptor() RasterizerDescriptor
	Release()
}

// ProgramDescriptor describes a raster program compiled from pre-processed WGSL.
type ProgramDescriptor struct {
	Label         string
	Source        string
	VertexEntry   string
	FragmentEntry string // empty for depth-only programs
	// ColorFormat is the format of the single color target, ignored when FragmentEntry is empty.
	ColorFormat TextureFormat
}

// Program is a compiled raster program.
type Program interface {
	Descriptor() ProgramDescriptor
	Release()
}

// RenderTarget selects the attachments of a depth pass. Color is optional.
type RenderTarget struct {
	Color      Texture
	ColorLayer uint32
	Depth      Texture
	DepthLayer uint32
}

// Pass records draw commands into a single render pass.
type Pass interface {
	// SetProgram binds a program with a rasterizer state.
	SetProgram(p Program, rs RasterizerState)

	// SetViewProjection uploads the view-projection matrix seen by the vertex stage.
	SetViewProjection(vp mgl32.Mat4)

	// SetGeometry binds the vertex (float3 positions) and uint32 index buffers.
	SetGeometry(vertices, indices Buffer)

	// DrawIndexedIndirect issues one indexed draw whose arguments live in args at offset.
	DrawIndexedIndirect(args Buffer, offset uint64)

	// End closes the pass.
	End()
}

// Encoder records GPU commands for one submission.
type Encoder interface {
	// CopyBufferToBuffer records a buffer-to-buffer copy.
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)

	// BeginDepthPass starts a render pass that clears and writes the given target.
	BeginDepthPass(target RenderTarget) Pass

	// Submit finishes recording and submits the commands to the queue.
	Submit() error
}

// Device is the GPU abstraction the shadow subsystem renders through.
// Implementations are not required to be safe for concurrent use; all calls are
// made from the render thread.
type Device interface {
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateSampler(desc SamplerDescriptor) (Sampler, error)
	CreateRasterizerState(desc RasterizerDescriptor) (RasterizerState, error)
	CreateProgram(desc ProgramDescriptor) (Program, error)

	// WriteBuffer uploads data to buf at offset through the queue.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateEncoder starts a new command encoder.
	CreateEncoder(label string) (Encoder, error)

	// FramesInFlight returns how many submitted frames the GPU may still be consuming
	// while the CPU records the next one.
	FramesInFlight() int

	// Release frees the device. Resources created from it must be released first.
	Release()
}
