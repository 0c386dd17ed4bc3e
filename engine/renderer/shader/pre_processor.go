// pre_processor.go implements the Oxy WGSL define pre-processor. It scans shader
// source for @oxy: annotations, replaces @oxy:defines with generated const
// declarations and strips @oxy:if blocks whose define is unset or false.
package shader

import (
	"fmt"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	defines *DefineList
}

// PreProcessor expands @oxy: annotations in WGSL source against a DefineList.
type PreProcessor interface {
	// Process returns source with every annotation resolved.
	//
	// Parameters:
	//   - source: the raw WGSL source containing annotations
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: if an annotation is malformed or blocks are unbalanced
	Process(source string) (string, error)

	// Defines returns the list the pre-processor expands against.
	Defines() *DefineList
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor bound to defines. A nil list behaves as empty.
//
// Parameters:
//   - defines: the define list to expand
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(defines *DefineList) PreProcessor {
	if defines == nil {
		defines = NewDefineList()
	}
	return &preProcessor{defines: defines}
}

func (p *preProcessor) Defines() *DefineList {
	return p.defines
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	// each entry records whether the enclosing block is emitted
	var stack []bool
	emitting := func() bool {
		for _, on := range stack {
			if !on {
				return false
			}
		}
		return true
	}

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			if emitting() {
				out = append(out, line)
			}
			continue
		}

		switch a.Type {
		case AnnotationTypeDefines:
			if emitting() {
				out = append(out, p.constDeclarations()...)
			}
		case AnnotationTypeIf:
			stack = append(stack, p.truthy(a.Define))
		case AnnotationTypeIfNot:
			stack = append(stack, !p.truthy(a.Define))
		case AnnotationTypeEndIf:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: @oxy endif without matching if", a.Line)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return "", fmt.Errorf("unterminated @oxy if block (%d open)", len(stack))
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) constDeclarations() []string {
	decls := make([]string, 0, p.defines.Len())
	for _, name := range p.defines.names {
		decls = append(decls, fmt.Sprintf("const %s = %s;", name, p.defines.values[name]))
	}
	return decls
}

// truthy treats unset, "0", "0u", "false" and "" as false.
func (p *preProcessor) truthy(name string) bool {
	v, ok := p.defines.Get(name)
	if !ok {
		return false
	}
	switch strings.TrimSpace(v) {
	case "", "0", "0u", "false":
		return false
	}
	return true
}
