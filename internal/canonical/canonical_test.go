package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"int64", int64(9223372036854775807), "9223372036854775807"},
		{"uint8", uint8(255), "255"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"strings", []string{"a", "b"}, `["a","b"]`},
		{"ints", []int{2, 0, 1}, "[2,0,1]"},
		{"mixed array", []any{1, "x", true}, `[1,"x",true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	result, err := Marshal(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": 1, "x": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before
	// U+E000 in UTF-16 but after it in UTF-8.
	result, err := Marshal(map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
		{"newline and tab", "a\nb\tc", `"a\nb\tc"`},
		{"control char", "\x01", `"\u0001"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMarshalRejects(t *testing.T) {
	for name, v := range map[string]any{
		"nil":          nil,
		"float":        1.5,
		"nested float": map[string]any{"a": []any{float32(1)}},
		"struct":       struct{}{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Marshal(v)
			assert.Error(t, err)
		})
	}
}

func TestHashWithDomain(t *testing.T) {
	data := []byte(`{"a":1}`)
	sum := sha256.Sum256(append([]byte("d/v1\x00"), data...))

	assert.Equal(t, hex.EncodeToString(sum[:]), HashWithDomain("d/v1", data))
	assert.NotEqual(t, HashWithDomain("d/v1", data), HashWithDomain("d/v2", data))
	assert.Len(t, HashWithDomain("d/v1", data), 64)
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a, err := Hash("d/v1", map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	b, err := Hash("d/v1", map[string]any{"y": "z", "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Hash("d/v1", 2.5)
	assert.Error(t, err)
}
