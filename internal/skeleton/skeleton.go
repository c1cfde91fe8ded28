// Package skeleton loads the joint layout used by a labelling session.
//
// A skeleton file is CUE:
//
//	skeleton: {
//		name: "mouse"
//		joints: ["nose", "left_ear", "right_ear", "tail_base"]
//	}
//
// It is unified with the embedded #Skeleton definition before use. The
// number of joints is the per-frame point capacity.
package skeleton

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Skeleton is an ordered list of joint names.
type Skeleton struct {
	Name   string   `json:"name"`
	Joints []string `json:"joints"`
}

// Capacity returns the number of points recorded per frame.
func (s *Skeleton) Capacity() int {
	return len(s.Joints)
}

// Default returns the 11-joint body skeleton.
func Default() *Skeleton {
	return &Skeleton{
		Name: "body",
		Joints: []string{
			"head",
			"neck",
			"left_shoulder",
			"right_shoulder",
			"left_elbow",
			"right_elbow",
			"left_wrist",
			"right_wrist",
			"pelvis",
			"left_knee",
			"right_knee",
		},
	}
}

// Numbered returns an anonymous skeleton of k joints named p1..pk.
func Numbered(k int) *Skeleton {
	joints := make([]string, max(k, 0))
	for i := range joints {
		joints[i] = fmt.Sprintf("p%d", i+1)
	}
	return &Skeleton{Name: fmt.Sprintf("points-%d", k), Joints: joints}
}

// Error reports an invalid skeleton file.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and validates a skeleton file.
func Load(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load skeleton: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against #Skeleton. filename is used in error
// positions only.
func Parse(data []byte, filename string) (*Skeleton, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("skeleton schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sv := v.LookupPath(cue.ParsePath("skeleton"))
	if !sv.Exists() {
		return nil, &Error{Field: "skeleton", Message: "skeleton is required", Pos: v.Pos()}
	}

	unified := schema.LookupPath(cue.ParsePath("#Skeleton")).Unify(sv)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var s Skeleton
	if err := unified.Decode(&s); err != nil {
		return nil, formatCUEError(err)
	}
	if err := s.Validate(); err != nil {
		return nil, &Error{Field: "joints", Message: err.Error(), Pos: sv.Pos()}
	}
	return &s, nil
}

// Validate checks the rules CUE cannot express directly: joint names are
// unique.
func (s *Skeleton) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Joints) == 0 {
		return fmt.Errorf("at least one joint is required")
	}
	seen := make(map[string]int, len(s.Joints))
	for i, j := range s.Joints {
		if j == "" {
			return fmt.Errorf("joint %d has an empty name", i)
		}
		if prev, ok := seen[j]; ok {
			return fmt.Errorf("joint %q repeated at positions %d and %d", j, prev, i)
		}
		seen[j] = i
	}
	return nil
}

// Format renders s as a skeleton file.
func (s *Skeleton) Format() ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(map[string]any{"skeleton": s})
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("format skeleton: %w", err)
	}
	node := v.Syntax(cue.Final())
	if st, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: st.Elts}
	}
	out, err := format.Node(node)
	if err != nil {
		return nil, fmt.Errorf("format skeleton: %w", err)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
