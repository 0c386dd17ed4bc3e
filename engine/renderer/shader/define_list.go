package shader

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// DefineList is an ordered set of named compile-time constants injected into WGSL
// sources by the PreProcessor. Insertion order is preserved so generated source is
// stable between runs.
type DefineList struct {
	names  []string
	values map[string]string
}

// NewDefineList creates an empty DefineList.
func NewDefineList() *DefineList {
	return &DefineList{values: map[string]string{}}
}

// Add sets name to value, appending it if it is not yet present.
//
// Parameters:
//   - name: the define name, emitted as a WGSL const identifier
//   - value: the WGSL literal expression
//
// Returns:
//   - *DefineList: the list, for chaining
func (d *DefineList) Add(name, value string) *DefineList {
	if d.values == nil {
		d.values = map[string]string{}
	}
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = value
	return d
}

// AddInt sets name to an integer literal.
func (d *DefineList) AddInt(name string, v int) *DefineList {
	return d.Add(name, strconv.Itoa(v))
}

// AddUint sets name to an unsigned WGSL literal (with the u suffix).
func (d *DefineList) AddUint(name string, v uint32) *DefineList {
	return d.Add(name, fmt.Sprintf("%du", v))
}

// AddFloat sets name to a float literal that always carries a decimal point or exponent.
func (d *DefineList) AddFloat(name string, v float32) *DefineList {
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return d.Add(name, s)
}

// AddBool sets name to true or false.
func (d *DefineList) AddBool(name string, v bool) *DefineList {
	return d.Add(name, strconv.FormatBool(v))
}

// Remove deletes name if present.
func (d *DefineList) Remove(name string) {
	if _, ok := d.values[name]; !ok {
		return
	}
	delete(d.values, name)
	d.names = slices.DeleteFunc(d.names, func(n string) bool { return n == name })
}

// Get returns the value of name and whether it is set.
func (d *DefineList) Get(name string) (string, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Has reports whether name is set.
func (d *DefineList) Has(name string) bool {
	_, ok := d.values[name]
	return ok
}

// Len returns the number of defines.
func (d *DefineList) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns the define names in insertion order.
func (d *DefineList) Names() []string {
	return slices.Clone(d.names)
}

// Merge adds every define of other, overwriting values already present.
//
// Parameters:
//   - other: the list to merge in, may be nil
//
// Returns:
//   - *DefineList: the list, for chaining
func (d *DefineList) Merge(other *DefineList) *DefineList {
	if other == nil {
		return d
	}
	for _, n := range other.names {
		d.Add(n, other.values[n])
	}
	return d
}

// Clone returns an independent copy of the list.
func (d *DefineList) Clone() *DefineList {
	return &DefineList{
		names:  slices.Clone(d.names),
		values: maps.Clone(d.values),
	}
}

// Equal reports whether both lists hold the same names and values, ignoring order.
func (d *DefineList) Equal(other *DefineList) bool {
	if d == nil || other == nil {
		return d.Len() == other.Len()
	}
	return maps.Equal(d.values, other.values)
}
