package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "Here you go:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"fenced without lang", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"object inside prose", `The answer is {"a":3} as requested.`, `{"a":3}`},
		{"no json", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.input))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := decodeObject("```json\n{\"title\": \"x\", \"claims\": [\"1\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", obj["title"])

	_, err = decodeObject("not json at all")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrStageLogic))

	_, err = decodeObject("null")
	assert.Error(t, err)
}

func TestFieldHelpers(t *testing.T) {
	m := map[string]any{
		"s":     "  hello ",
		"n":     7.0,
		"ns":    "4.5",
		"list":  []any{"a", " ", map[string]any{"text": "b"}, 3.0},
		"slist": "single",
	}
	assert.Equal(t, "hello", stringField(m, "s", "d"))
	assert.Equal(t, "d", stringField(m, "missing", "d"))
	assert.Equal(t, 7.0, numberField(m, "n", 0))
	assert.Equal(t, 4.5, numberField(m, "ns", 0))
	assert.Equal(t, 1.0, numberField(m, "missing", 1))
	assert.Equal(t, []string{"a", "b", "3"}, stringList(m, "list"))
	assert.Equal(t, []string{"single"}, stringList(m, "slist"))
	assert.Nil(t, stringList(nil, "x"))

	assert.Equal(t, "Strong", oneOf("strong", []string{"Weak", "Moderate", "Strong"}, "Moderate"))
	assert.Equal(t, "Weak", oneOf("rather weak overall", []string{"Weak", "Moderate", "Strong"}, "Moderate"))
	assert.Equal(t, "Moderate", oneOf("???", []string{"Weak", "Moderate", "Strong"}, "Moderate"))
	assert.Equal(t, 10.0, clamp(12, 0, 10))
}

func TestCanonicalJSON_SortedAndUnescaped(t *testing.T) {
	data, err := canonicalJSON(map[string]any{"b": "<x>", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":"<x>"}`, string(data))
}
