package pipeline

import (
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithSource sets the WGSL source, which may contain @oxy: define annotations.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - PipelineBuilderOption: a function that sets the source for this pipeline
func WithSource(source string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.source = source
	}
}

// WithVertexEntry sets the vertex entry point. Defaults to vs_main.
func WithVertexEntry(entry string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexEntry = entry
	}
}

// WithFragmentEntry sets the fragment entry point. Depth-only pipelines leave it empty.
//
// Parameters:
//   - entry: the fragment entry point name
//   - format: the color target format the fragment stage writes
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment stage for this pipeline
func WithFragmentEntry(entry string, format renderer.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentEntry = entry
		p.colorFormat = format
	}
}

// WithDefines sets the initial define list.
func WithDefines(defines *shader.DefineList) PipelineBuilderOption {
	return func(p *pipeline) {
		if defines != nil {
			p.defines = defines.Clone()
		}
	}
}
