package skeleton

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 11, s.Capacity())
	assert.Equal(t, "head", s.Joints[0])
	assert.Equal(t, "right_knee", s.Joints[10])
	assert.NoError(t, s.Validate())
}

func TestNumbered(t *testing.T) {
	s := Numbered(3)
	assert.Equal(t, "points-3", s.Name)
	assert.Equal(t, []string{"p1", "p2", "p3"}, s.Joints)
	assert.NoError(t, s.Validate())

	assert.Error(t, Numbered(0).Validate())
}

func TestParse(t *testing.T) {
	src := `
skeleton: {
	name: "mouse"
	joints: ["nose", "left_ear", "right_ear", "tail_base"]
}
`
	s, err := Parse([]byte(src), "mouse.cue")
	require.NoError(t, err)
	assert.Equal(t, "mouse", s.Name)
	assert.Equal(t, []string{"nose", "left_ear", "right_ear", "tail_base"}, s.Joints)
	assert.Equal(t, 4, s.Capacity())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `skeleton: {`},
		{"missing skeleton", `other: 1`},
		{"missing name", `skeleton: joints: ["a"]`},
		{"empty name", `skeleton: {name: "", joints: ["a"]}`},
		{"no joints", `skeleton: {name: "x", joints: []}`},
		{"empty joint", `skeleton: {name: "x", joints: ["a", ""]}`},
		{"wrong type", `skeleton: {name: "x", joints: [1]}`},
		{"unknown field", `skeleton: {name: "x", joints: ["a"], bones: 2}`},
		{"duplicate joint", `skeleton: {name: "x", joints: ["a", "b", "a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			assert.Error(t, err)
		})
	}
}

func TestParse_DuplicateMessage(t *testing.T) {
	_, err := Parse([]byte(`skeleton: {name: "x", joints: ["a", "b", "a"]}`), "dup.cue")
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "joints", serr.Field)
	assert.Contains(t, serr.Message, `"a" repeated at positions 0 and 2`)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hand.cue")
	require.NoError(t, os.WriteFile(path, []byte(`skeleton: {name: "hand", joints: ["wrist", "thumb"]}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Capacity())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestFormat_RoundTrip(t *testing.T) {
	out, err := Default().Format()
	require.NoError(t, err)
	assert.Contains(t, string(out), "skeleton:")
	assert.Contains(t, string(out), `"left_shoulder"`)

	s, err := Parse(out, "default.cue")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}
