package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-shadow/common"
	"github.com/Carmen-Shannon/oxy-shadow/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// ViewProjectionTable holds one view-projection matrix per spot light. Matrices are
// staged on the CPU as passes render and reach the GPU buffer in one copy per frame.
type ViewProjectionTable struct {
	device renderer.Device

	// mirror is the last uploaded content of buffer.
	mirror      []mgl32.Mat4
	pending     []mgl32.Mat4
	wasRendered []bool
	dirty       bool

	ring   *renderer.StagingRing
	buffer renderer.Buffer
}

// NewViewProjectionTable allocates the GPU buffer and staging ring for count matrices.
// A zero count still allocates one matrix so the buffer can be bound.
//
// Parameters:
//   - device: the device to allocate on
//   - count: the number of spot lights
//
// Returns:
//   - *ViewProjectionTable: the table
//   - error: if an allocation failed
func NewViewProjectionTable(device renderer.Device, count int) (*ViewProjectionTable, error) {
	size := uint64(max(count, 1)) * common.Mat4Size

	buf, err := device.CreateBuffer(renderer.BufferDescriptor{
		Label: "Shadow VP Buffer",
		Size:  size,
		Usage: renderer.BufferUsageStorage | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow VP buffer: %w", err)
	}

	ring, err := renderer.NewStagingRing(device, "Shadow VP Staging", size, 0)
	if err != nil {
		buf.Release()
		return nil, err
	}

	mirror := make([]mgl32.Mat4, count)
	for i := range mirror {
		mirror[i] = mgl32.Ident4()
	}
	return &ViewProjectionTable{
		device:      device,
		mirror:      mirror,
		pending:     make([]mgl32.Mat4, count),
		wasRendered: make([]bool, count),
		ring:        ring,
		buffer:      buf,
	}, nil
}

// BeginFrame clears the per-frame rendered marks.
func (t *ViewProjectionTable) BeginFrame() {
	clear(t.wasRendered)
}

// Set records the matrix a spot pass rendered with this frame.
func (t *ViewProjectionTable) Set(i int, vp mgl32.Mat4) {
	t.pending[i] = vp
	t.wasRendered[i] = true
	t.dirty = true
}

// MarkDirty forces the next Flush to upload even if no matrix was set.
func (t *ViewProjectionTable) MarkDirty() {
	t.dirty = true
}

// Dirty reports whether the next Flush will upload.
func (t *ViewProjectionTable) Dirty() bool {
	return t.dirty
}

// Flush copies the matrices rendered this frame into the mirror and uploads the whole
// mirror through the staging ring. Entries not rendered this frame keep their previous
// value.
//
// Parameters:
//   - enc: the encoder the copy is recorded on
//
// Returns:
//   - bool: true if an upload was recorded
//   - error: if the staging write failed
func (t *ViewProjectionTable) Flush(enc renderer.Encoder) (bool, error) {
	if !t.dirty {
		return false, nil
	}
	for i, rendered := range t.wasRendered {
		if rendered {
			t.mirror[i] = t.pending[i]
		}
	}
	if err := t.ring.Write(enc, common.MarshalMat4s(t.mirror), t.buffer, 0); err != nil {
		return false, fmt.Errorf("failed to upload shadow VP matrices: %w", err)
	}
	t.dirty = false
	return true, nil
}

// Len returns the number of matrices.
func (t *ViewProjectionTable) Len() int {
	return len(t.mirror)
}

// Matrix returns the last uploaded matrix of spot i.
func (t *ViewProjectionTable) Matrix(i int) mgl32.Mat4 {
	return t.mirror[i]
}

// WasRendered reports whether spot i rendered this frame.
func (t *ViewProjectionTable) WasRendered(i int) bool {
	return t.wasRendered[i]
}

// Buffer returns the GPU buffer the matrices are read from.
func (t *ViewProjectionTable) Buffer() renderer.Buffer {
	return t.buffer
}

// Ring returns the staging ring.
func (t *ViewProjectionTable) Ring() *renderer.StagingRing {
	return t.ring
}

// Release frees the buffer and staging ring.
func (t *ViewProjectionTable) Release() {
	t.buffer.Release()
	t.ring.Release()
}
