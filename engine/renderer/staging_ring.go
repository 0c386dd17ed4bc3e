package renderer

import (
	"fmt"
)

// StagingRing is a CPU-writable staging buffer split into equally sized slots that are
// cycled across frames. Each Write fills the next slot and records a copy into a
// persistent destination buffer.
//
// The ring depth is always greater than the device's frames in flight, so a slot is
// only rewritten after every frame that could still read it has retired.
type StagingRing struct {
	device   Device
	buffer   Buffer
	slotSize uint64
	depth    int
	index    int
	wraps    int
}

// NewStagingRing allocates a staging ring with the given slot size.
//
// A zero depth selects device.FramesInFlight()+1. Any other depth must exceed the
// device's frames in flight; a smaller depth is a configuration error and panics.
//
// Parameters:
//   - device: the device that owns the staging buffer
//   - label: debug label for the staging buffer
//   - slotSize: bytes per slot
//   - depth: number of slots, or 0 to derive it from the device
//
// Returns:
//   - *StagingRing: the ring
//   - error: if the staging buffer could not be created
func NewStagingRing(device Device, label string, slotSize uint64, depth int) (*StagingRing, error) {
	minDepth := device.FramesInFlight() + 1
	if depth == 0 {
		depth = minDepth
	}
	if depth < minDepth {
		panic(fmt.Sprintf("renderer: staging ring %q depth %d must exceed %d frames in flight", label, depth, minDepth-1))
	}
	if slotSize == 0 {
		panic(fmt.Sprintf("renderer: staging ring %q requires a non-zero slot size", label))
	}

	buf, err := device.CreateBuffer(BufferDescriptor{
		Label: label,
		Size:  slotSize * uint64(depth),
		Usage: BufferUsageCopySrc | BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging ring %q: %w", label, err)
	}

	return &StagingRing{
		device:   device,
		buffer:   buf,
		slotSize: slotSize,
		depth:    depth,
	}, nil
}

// Write uploads data into the current slot, records a copy of len(data) bytes to
// dst at dstOffset and advances the ring.
//
// Parameters:
//   - enc: the encoder recording this frame's commands
//   - data: the bytes to stage, at most SlotSize
//   - dst: the persistent destination buffer
//   - dstOffset: byte offset into dst
//
// Returns:
//   - error: if data exceeds the slot size or the upload fails
func (r *StagingRing) Write(enc Encoder, data []byte, dst Buffer, dstOffset uint64) error {
	size := uint64(len(data))
	if size > r.slotSize {
		return fmt.Errorf("staging write of %d bytes exceeds slot size %d", size, r.slotSize)
	}

	offset := uint64(r.index) * r.slotSize
	if size > 0 {
		if err := r.device.WriteBuffer(r.buffer, offset, data); err != nil {
			return fmt.Errorf("failed to write staging slot %d: %w", r.index, err)
		}
		enc.CopyBufferToBuffer(r.buffer, offset, dst, dstOffset, size)
	}
	r.advance()
	return nil
}

func (r *StagingRing) advance() {
	r.index++
	if r.index == r.depth {
		r.index = 0
		r.wraps++
	}
}

// Index returns the slot the next Write will use.
func (r *StagingRing) Index() int {
	return r.index
}

// Wraps returns how many times the write index has wrapped back to slot 0.
func (r *StagingRing) Wraps() int {
	return r.wraps
}

// Depth returns the number of slots.
func (r *StagingRing) Depth() int {
	return r.depth
}

// SlotSize returns the size in bytes of one slot.
func (r *StagingRing) SlotSize() uint64 {
	return r.slotSize
}

// Release frees the staging buffer.
func (r *StagingRing) Release() {
	if r.buffer != nil {
		r.buffer.Release()
		r.buffer = nil
	}
}
