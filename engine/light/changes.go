package light

import "strings"

// Changes is a bitmask of the light properties modified since the last frame.
type Changes uint32

const (
	ChangeNone        Changes = 0
	ChangeActive      Changes = 1 << 0
	ChangePosition    Changes = 1 << 1
	ChangeDirection   Changes = 1 << 2
	ChangeIntensity   Changes = 1 << 3
	ChangeSurfaceArea Changes = 1 << 4
)

// Any reports whether c shares at least one bit with mask.
func (c Changes) Any(mask Changes) bool {
	return c&mask != 0
}

func (c Changes) String() string {
	if c == ChangeNone {
		return "none"
	}
	names := []struct {
		bit  Changes
		name string
	}{
		{ChangeActive, "active"},
		{ChangePosition, "position"},
		{ChangeDirection, "direction"},
		{ChangeIntensity, "intensity"},
		{ChangeSurfaceArea, "surface-area"},
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if c&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
