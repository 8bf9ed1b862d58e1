package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Markdown(t *testing.T) {
	doc := Document{
		Title: "Review",
		Meta:  map[string]string{"workflow_id": "wf", "stage": "review"},
		Sections: []Section{
			{Heading: "Compliance", Body: "ok"},
			{Heading: "Notes", Body: "  "},
		},
	}

	want := "# Review\n\n" +
		"- **stage**: review\n" +
		"- **workflow_id**: wf\n\n" +
		"## Compliance\n\nok\n\n" +
		"## Notes\n\n_(empty)_\n"
	assert.Equal(t, want, doc.Markdown())
}

func TestRenderValue_Deterministic(t *testing.T) {
	v := map[string]any{
		"zeta":  "last",
		"alpha": 8.5,
		"list":  []any{"a", map[string]any{"k": true}},
		"empty": []any{},
	}

	want := "- **alpha**: 8.5\n" +
		"- **empty**:\n" +
		"  _(none)_\n" +
		"- **list**:\n" +
		"  - a\n" +
		"  -\n" +
		"    - **k**: true\n" +
		"- **zeta**: last"
	assert.Equal(t, want, RenderValue(v))
	assert.Equal(t, RenderValue(v), RenderValue(v))
}

func TestRenderValue_Scalars(t *testing.T) {
	assert.Equal(t, "plain text", RenderValue("plain text"))
	assert.Equal(t, "3", RenderValue(3.0))
	assert.Equal(t, "- x\n- y", RenderValue([]string{"x", "y"}))
}
