// annotations.go defines the annotation types and parser for the Oxy WGSL define
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that
// either inject the active DefineList as WGSL constants or guard a block of source
// on a define.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeDefines is replaced with one const declaration per define.
	//
	// Syntax: //@oxy:defines
	AnnotationTypeDefines AnnotationType = "defines"

	// AnnotationTypeIf keeps the following lines up to the matching endif only when the
	// named define is set to a truthy value. Blocks may nest.
	//
	// Syntax: //@oxy:if <define>
	AnnotationTypeIf AnnotationType = "if"

	// AnnotationTypeIfNot is the negation of AnnotationTypeIf.
	//
	// Syntax: //@oxy:ifnot <define>
	AnnotationTypeIfNot AnnotationType = "ifnot"

	// AnnotationTypeEndIf closes the innermost if or ifnot block.
	//
	// Syntax: //@oxy:endif
	AnnotationTypeEndIf AnnotationType = "endif"
)

// Annotation is a single parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType
	// Define is the guarded define name for if and ifnot annotations.
	Define string
	// Line is the 1-based source line.
	Line int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeDefines, AnnotationTypeEndIf:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation takes no arguments", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Line: lineNum}, nil
	case AnnotationTypeIf, AnnotationTypeIfNot:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation requires exactly one define name", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Define: args[1], Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
