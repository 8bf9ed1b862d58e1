package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/testutil/mocks"
)

func newTask(stage string) Task {
	return Task{
		TaskID:          "t1",
		WorkflowID:      "w1",
		StageName:       stage,
		Topic:           "Adaptive battery thermal control",
		Description:     "Controls cell temperature with a learned model.",
		PreviousResults: map[string]any{},
		Context:         map[string]any{},
	}
}

func clientWith(p *mocks.MockProvider) *llm.Client {
	return llm.NewClient(p, llm.WithModel("test-model"))
}

func TestPlanner_NormalisesStructuredResponse(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse("```json\n" + `{
		"novelty_score": 12,
		"inventive_step_score": "6.5",
		"patentability_assessment": "strong",
		"key_innovation_areas": ["thermal model", "control loop"],
		"success_probability": 1.4
	}` + "\n```")

	res, err := NewPlanner(clientWith(p), Options{}).Execute(context.Background(), newTask("planning"))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status())
	assert.Equal(t, "planning", res["stage"])
	assert.Equal(t, "planner", res["executor"])
	assert.NotContains(t, res, "raw_response")

	s := res["strategy"].(map[string]any)
	assert.Equal(t, 10.0, s["novelty_score"])
	assert.Equal(t, 6.5, s["inventive_step_score"])
	assert.Equal(t, "Strong", s["patentability_assessment"])
	assert.Equal(t, 1.0, s["success_probability"])
	assert.Equal(t, "Adaptive battery thermal control", s["topic"])
	assert.Equal(t, []string{"thermal model", "control loop"}, s["key_innovation_areas"])

	// 系统提示词与用户提示词都发送了
	call := p.LastCall()
	require.NotNil(t, call)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
	assert.Contains(t, call.Messages[1].Content, "Adaptive battery thermal control")
}

func TestPlanner_UnstructuredResponseFallsBack(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse("I think this idea is quite novel.")

	res, err := NewPlanner(clientWith(p), Options{}).Execute(context.Background(), newTask("planning"))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status())
	assert.Equal(t, "I think this idea is quite novel.", res["raw_response"])
	s := res["strategy"].(map[string]any)
	assert.Equal(t, 5.0, s["novelty_score"])
	assert.Equal(t, "Moderate", s["patentability_assessment"])
	assert.Equal(t, 0.5, s["success_probability"])
}

func TestExecutor_ProviderErrorFailsStage(t *testing.T) {
	p := mocks.NewMockProvider().WithError(&llm.ProviderError{Provider: "mock", StatusCode: 503, Message: "upstream down"})

	res, err := NewSearcher(clientWith(p), Options{}).Execute(context.Background(), newTask("search"))
	require.Error(t, err)

	var perr *llm.ProviderError
	assert.True(t, errors.As(err, &perr))
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error(), "upstream down")
	assert.NotContains(t, res, "search_results")
}

func TestSearcher_Normalises(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"search_results": {
		"summary": "two hits",
		"relevant_patents": [{"id": "CN1", "title": "A", "relevance": 3}, "bogus", {"title": "B"}],
		"risk_assessment": "HIGH",
		"recommendations": ["narrow claim 1"]
	}}`)

	res, err := NewSearcher(clientWith(p), Options{}).Execute(context.Background(), newTask("search"))
	require.NoError(t, err)

	sr := res["search_results"].(map[string]any)
	patents := sr["relevant_patents"].([]map[string]any)
	require.Len(t, patents, 2)
	assert.Equal(t, 1.0, patents[0]["relevance"])
	assert.Equal(t, "unknown-3", patents[1]["id"])
	assert.Equal(t, 2, sr["patents_found"])
	assert.Equal(t, "High", sr["risk_assessment"])
	assert.Equal(t, []string{"narrow claim 1"}, sr["recommendations"])
}

func TestDiscusser_KeyInsightsAlias(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"innovations": ["i1"], "technical_insights": ["t1", "t2"]}`)

	res, err := NewDiscusser(clientWith(p), Options{}).Execute(context.Background(), newTask("discussion"))
	require.NoError(t, err)

	d := res["discussion"].(map[string]any)
	assert.Equal(t, []string{"i1"}, d["innovations"])
	assert.Equal(t, []string{"t1", "t2"}, d["key_insights"])
}

func TestWriter_FullDraftPadsClaims(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"title": "Thermal controller", "abstract": "short", "claims": ["1. A controller."]}`)

	res, err := NewWriter(clientWith(p), Options{}).Execute(context.Background(), newTask("drafting"))
	require.NoError(t, err)

	d := res["patent_draft"].(map[string]any)
	assert.Equal(t, "Thermal controller", d["title"])
	claims := d["claims"].([]string)
	assert.Len(t, claims, 3)
	assert.Equal(t, "1. A controller.", claims[0])
	for _, k := range []string{"abstract", "background", "summary", "detailed_description", "drawings"} {
		assert.Contains(t, d, k)
	}
}

func TestWriter_SectionMode(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse("1. A method.\n2. The method of claim 1.")

	task := newTask("claims")
	task.Context["section"] = "claims"
	res, err := NewWriter(clientWith(p), Options{}).Execute(context.Background(), task)
	require.NoError(t, err)

	sec := res["section"].(map[string]any)
	assert.Equal(t, "claims", sec["name"])
	lines := strings.Split(sec["content"].(string), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "1. A method.", lines[0])
	assert.Contains(t, res, "raw_response")
	assert.Contains(t, p.LastCall().Messages[1].Content, `"claims" section`)
}

func TestReviewer_DefaultsEveryDimension(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"clarity": {"score": 9, "findings": ["ok"]}}`)

	prev := map[string]any{"drafting": Result{"patent_draft": map[string]any{"title": "T"}}}
	task := newTask("review")
	task.PreviousResults = prev
	res, err := NewReviewer(clientWith(p), Options{}).Execute(context.Background(), task)
	require.NoError(t, err)

	review := res["review"].(map[string]any)
	for _, dim := range reviewDimensions {
		require.Contains(t, review, dim)
	}
	assert.Equal(t, 9.0, review["clarity"].(map[string]any)["score"])
	assert.Equal(t, 5.0, review["compliance"].(map[string]any)["score"])
	assert.Contains(t, p.LastCall().Messages[1].Content, `"title":"T"`)
}

func TestRewriter_FallsBackToPreviousDraft(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"abstract": "revised abstract", "revision_notes": ["fixed claim 2"]}`)

	task := newTask("rewrite")
	task.PreviousResults = map[string]any{
		"drafting": Result{"patent_draft": map[string]any{
			"title":  "Original title",
			"claims": []any{"1. a", "2. b", "3. c", "4. d"},
		}},
	}
	res, err := NewRewriter(clientWith(p), Options{}).Execute(context.Background(), task)
	require.NoError(t, err)

	final := res["final_draft"].(map[string]any)
	assert.Equal(t, "Original title", final["title"])
	assert.Equal(t, "revised abstract", final["abstract"])
	assert.Len(t, final["claims"], 4)
	assert.Equal(t, []string{"fixed claim 2"}, final["revision_notes"])
}
