package renderer

// ShaderVars receives named resources for a consuming shading pass.
// A consumer maps the names onto its own bind group layout.
type ShaderVars interface {
	SetBytes(name string, data []byte)
	SetBuffer(name string, buf Buffer)
	SetTextures(name string, textures []Texture)
	SetSampler(name string, s Sampler)
}

// BindingTable is a ShaderVars implementation that records every binding by name.
type BindingTable struct {
	Bytes    map[string][]byte
	Buffers  map[string]Buffer
	Textures map[string][]Texture
	Samplers map[string]Sampler
}

var _ ShaderVars = &BindingTable{}

// NewBindingTable creates an empty BindingTable.
//
// Returns:
//   - *BindingTable: the table
func NewBindingTable() *BindingTable {
	return &BindingTable{
		Bytes:    map[string][]byte{},
		Buffers:  map[string]Buffer{},
		Textures: map[string][]Texture{},
		Samplers: map[string]Sampler{},
	}
}

func (t *BindingTable) SetBytes(name string, data []byte) {
	t.Bytes[name] = data
}

func (t *BindingTable) SetBuffer(name string, buf Buffer) {
	t.Buffers[name] = buf
}

func (t *BindingTable) SetTextures(name string, textures []Texture) {
	t.Textures[name] = textures
}

func (t *BindingTable) SetSampler(name string, s Sampler) {
	t.Samplers[name] = s
}
