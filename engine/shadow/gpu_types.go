package shadow

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUShadowParams is the uniform block a shading pass reads shadow parameters from.
// Size: 64 bytes.
type GPUShadowParams struct {
	SceneCenter       [3]float32 // offset  0
	FarPlane          float32    // offset 12
	DirectionalOffset float32    // offset 16
	ShadowMapSize     uint32     // offset 20
	CubeSize          uint32     // offset 24
	CascadeSize       uint32     // offset 28
	TexelSizeSpot     float32    // offset 32
	TexelSizeCube     float32    // offset 36
	TexelSizeCascade  float32    // offset 40
	NearPlane         float32    // offset 44
	FrameDim          [2]uint32  // offset 48
	_                 [2]uint32  // offset 56
}

// Size returns the size of the GPUShadowParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (p *GPUShadowParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the parameters into a little-endian byte slice.
//
// Returns:
//   - []byte: the serialized bytes
func (p *GPUShadowParams) Marshal() []byte {
	buf := make([]byte, p.Size())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], math.Float32bits(p.SceneCenter[0]))
	le.PutUint32(buf[4:8], math.Float32bits(p.SceneCenter[1]))
	le.PutUint32(buf[8:12], math.Float32bits(p.SceneCenter[2]))
	le.PutUint32(buf[12:16], math.Float32bits(p.FarPlane))
	le.PutUint32(buf[16:20], math.Float32bits(p.DirectionalOffset))
	le.PutUint32(buf[20:24], p.ShadowMapSize)
	le.PutUint32(buf[24:28], p.CubeSize)
	le.PutUint32(buf[28:32], p.CascadeSize)
	le.PutUint32(buf[32:36], math.Float32bits(p.TexelSizeSpot))
	le.PutUint32(buf[36:40], math.Float32bits(p.TexelSizeCube))
	le.PutUint32(buf[40:44], math.Float32bits(p.TexelSizeCascade))
	le.PutUint32(buf[44:48], math.Float32bits(p.NearPlane))
	le.PutUint32(buf[48:52], p.FrameDim[0])
	le.PutUint32(buf[52:56], p.FrameDim[1])
	return buf
}
