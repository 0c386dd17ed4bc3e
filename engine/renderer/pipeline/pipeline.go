package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/engine/logger"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/shader"
	"go.uber.org/zap"
)

// pipeline is the implementation of the Pipeline interface.
// It pairs a WGSL source with the define list it is compiled against and caches the
// compiled program until the defines change.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for labels and logs
	pipelineKey string

	source        string
	vertexEntry   string
	fragmentEntry string
	colorFormat   renderer.TextureFormat

	defines  *shader.DefineList
	program  renderer.Program
	stale    bool
	compiles int
}

// Pipeline is a raster program whose compiled form follows its define list. Changing
// the defines marks the program stale and the next Prepare recompiles it.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Defines returns a copy of the defines the pipeline compiles against.
	Defines() *shader.DefineList

	// SetDefines replaces the define list.
	//
	// Parameters:
	//   - defines: the new define list
	//
	// Returns:
	//   - bool: true if the list differs from the current one, which marks the program stale
	SetDefines(defines *shader.DefineList) bool

	// Invalidate marks the program stale without changing the defines.
	Invalidate()

	// Stale reports whether the next Prepare will compile.
	Stale() bool

	// Prepare pre-processes and compiles the source if the program is stale, releasing
	// the previous program.
	//
	// Parameters:
	//   - device: the device to compile on
	//
	// Returns:
	//   - error: if pre-processing or compilation fails
	Prepare(device renderer.Device) error

	// Program returns the compiled program, or nil before the first Prepare.
	Program() renderer.Program

	// Compiles returns how many times the program has been compiled.
	Compiles() int

	// Release frees the compiled program.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline with the provided options.
//
// Parameters:
//   - key: the unique pipeline key
//   - options: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the pipeline, stale until the first Prepare
func NewPipeline(key string, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: key,
		vertexEntry: "vs_main",
		colorFormat: renderer.TextureFormatR32Float,
		defines:     shader.NewDefineList(),
		stale:       true,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.source == "" {
		panic(fmt.Sprintf("pipeline: %q has no source", key))
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Defines() *shader.DefineList {
	return p.defines.Clone()
}

func (p *pipeline) SetDefines(defines *shader.DefineList) bool {
	if defines == nil {
		defines = shader.NewDefineList()
	}
	if p.defines.Equal(defines) {
		return false
	}
	p.defines = defines.Clone()
	p.stale = true
	return true
}

func (p *pipeline) Invalidate() {
	p.stale = true
}

func (p *pipeline) Stale() bool {
	return p.stale
}

func (p *pipeline) Prepare(device renderer.Device) error {
	if !p.stale && p.program != nil {
		return nil
	}

	src, err := shader.NewPreProcessor(p.defines).Process(p.source)
	if err != nil {
		return fmt.Errorf("failed to pre-process %q: %w", p.pipelineKey, err)
	}

	prog, err := device.CreateProgram(renderer.ProgramDescriptor{
		Label:         p.pipelineKey,
		Source:        src,
		VertexEntry:   p.vertexEntry,
		FragmentEntry: p.fragmentEntry,
		ColorFormat:   p.colorFormat,
	})
	if err != nil {
		return err
	}

	if p.program != nil {
		p.program.Release()
	}
	p.program = prog
	p.stale = false
	p.compiles++

	logger.L().Debug("compiled raster program",
		zap.String("pipeline", p.pipelineKey),
		zap.Int("defines", p.defines.Len()),
		zap.Int("compiles", p.compiles),
	)
	return nil
}

func (p *pipeline) Program() renderer.Program {
	return p.program
}

func (p *pipeline) Compiles() int {
	return p.compiles
}

func (p *pipeline) Release() {
	if p.program != nil {
		p.program.Release()
		p.program = nil
	}
	p.stale = true
}
