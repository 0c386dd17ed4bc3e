package renderer

import (
	"encoding/binary"
	"unsafe"
)

// DrawIndexedArgumentsSize is the size in bytes of one DrawIndexedArguments record.
const DrawIndexedArgumentsSize = 20

// DrawIndexedArguments matches the WebGPU DrawIndexedIndirect argument layout.
// Size: 20 bytes.
type DrawIndexedArguments struct {
	IndexCount    uint32 // offset  0
	InstanceCount uint32 // offset  4
	FirstIndex    uint32 // offset  8
	BaseVertex    int32  // offset 12
	FirstInstance uint32 // offset 16
}

// Size returns the size of the DrawIndexedArguments struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (20)
func (a *DrawIndexedArguments) Size() int {
	return int(unsafe.Sizeof(*a))
}

// MarshalTo serializes the arguments into dst, which must hold 20 bytes.
//
// Parameters:
//   - dst: the destination slice
func (a *DrawIndexedArguments) MarshalTo(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], a.IndexCount)
	binary.LittleEndian.PutUint32(dst[4:8], a.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:12], a.FirstIndex)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(a.BaseVertex))
	binary.LittleEndian.PutUint32(dst[16:20], a.FirstInstance)
}

// MarshalDrawArguments serializes a command list into one contiguous buffer.
//
// Parameters:
//   - args: the draw commands
//
// Returns:
//   - []byte: len(args)*20 bytes ready for upload
func MarshalDrawArguments(args []DrawIndexedArguments) []byte {
	buf := make([]byte, len(args)*DrawIndexedArgumentsSize)
	for i := range args {
		args[i].MarshalTo(buf[i*DrawIndexedArgumentsSize:])
	}
	return buf
}
