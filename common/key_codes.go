package common

// Key is a platform key code. The values match GLFW, which uses ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key uint32

// Keys bound by the shadow demo.
const (
	KeySpace Key = 32
	Key1     Key = 49
	Key2     Key = 50
	Key3     Key = 51
	Key4     Key = 52
	KeyA     Key = 65
	KeyC     Key = 67
	KeyD     Key = 68
	KeyO     Key = 79
	KeyP     Key = 80
	KeyR     Key = 82
	KeyEsc   Key = 256
	KeyRight Key = 262
	KeyLeft  Key = 263
	KeyDown  Key = 264
	KeyUp    Key = 265
)
