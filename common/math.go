// Package common holds the math, culling geometry and small helpers shared by the engine packages.
package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mat4Size is the size in bytes of a single 4x4 float32 matrix on the GPU.
const Mat4Size = 64

// MarshalMat4 writes m into dst in column-major little-endian order.
// dst must hold at least Mat4Size bytes.
//
// Parameters:
//   - dst: destination byte slice
//   - m: the matrix to serialize
func MarshalMat4(dst []byte, m mgl32.Mat4) {
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:(i+1)*4], math.Float32bits(m[i]))
	}
}

// MarshalMat4s serializes a matrix list into one contiguous buffer of
// len(ms)*Mat4Size bytes.
//
// Parameters:
//   - ms: the matrices to serialize
//
// Returns:
//   - []byte: the serialized matrices
func MarshalMat4s(ms []mgl32.Mat4) []byte {
	buf := make([]byte, len(ms)*Mat4Size)
	for i, m := range ms {
		MarshalMat4(buf[i*Mat4Size:], m)
	}
	return buf
}

// MarshalFloats serializes a float32 list as little-endian words.
func MarshalFloats(fs []float32) []byte {
	buf := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// MarshalUints serializes a uint32 list as little-endian words.
func MarshalUints(us []uint32) []byte {
	buf := make([]byte, len(us)*4)
	for i, u := range us {
		binary.LittleEndian.PutUint32(buf[i*4:], u)
	}
	return buf
}

// Perspective creates a perspective projection matrix compatible with WebGPU clip space,
// where depth maps to [0, 1]. mgl32.Perspective targets the OpenGL [-1, 1] range, so the
// depth row is rebuilt here.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far / (near - far), -1,
		0, 0, (near * far) / (near - far), 0,
	}
}

// Ortho builds an orthographic projection matrix compatible with WebGPU's
// clip-space convention: X/Y in [-1, 1], Z in [0, 1].
//
// Parameters:
//   - left, right, bottom, top: the view volume extents
//   - near, far: the depth range
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	rl := right - left
	tb := top - bottom
	fn := far - near

	m[0] = 2.0 / rl
	m[5] = 2.0 / tb
	m[10] = -1.0 / fn
	m[12] = -(right + left) / rl
	m[13] = -(top + bottom) / tb
	m[14] = -near / fn
	return m
}

// LookAt creates a right-handed view matrix looking from eye toward center.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation
//
// Returns:
//   - mgl32.Mat4: the view matrix
func LookAt(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, center, up)
}

// Abs3 returns the component-wise absolute value of v.
func Abs3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{absF32(v[0]), absF32(v[1]), absF32(v[2])}
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
