package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 AgentHandler 测试
// =============================================================================

func TestAgentHandler_DirectDispatch(t *testing.T) {
	env := newTestEnv(t, nil)

	status, data := env.do(t, http.MethodPost, "/agents/planner/execute", map[string]any{
		"task_id":          "t1",
		"workflow_id":      "w1",
		"stage_name":       "planning",
		"topic":            "T",
		"description":      "D",
		"previous_results": map[string]any{},
		"context":          map[string]any{},
	})
	require.Equal(t, http.StatusOK, status, string(data))

	type plannerResponse struct {
		Status string `json:"status"`
		Result struct {
			Strategy map[string]any `json:"strategy"`
		} `json:"result"`
	}
	resp := decode[plannerResponse](t, data)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "T", resp.Result.Strategy["topic"])
	assert.Equal(t, 8.5, resp.Result.Strategy["novelty_score"])
}

func TestAgentHandler_CompressorEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	big := strings.Repeat("prior art paragraph about thermal regulation. ", 250)

	status, data := env.do(t, http.MethodPost, "/agents/compressor/execute", map[string]any{
		"topic":      "T",
		"stage_name": "compression_before_drafting",
		"previous_results": map[string]any{
			"core_strategy": map[string]any{"novelty_score": 8.5},
			"search":        map[string]any{"notes": big},
		},
		"context": map[string]any{"preserve": []string{"core_strategy"}},
	})
	require.Equal(t, http.StatusOK, status, string(data))

	resp := decode[AgentExecuteResponse](t, data)
	summary := resp.Result["compression_summary"].(map[string]any)
	assert.Less(t, summary["compressed_size"].(float64), summary["original_size"].(float64))
	for _, k := range resp.Result["preserved_elements"].([]any) {
		assert.Equal(t, "core_strategy", k)
	}
}

func TestAgentHandler_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	status, data := env.do(t, http.MethodGet, "/agents/writer/health", nil)
	require.Equal(t, http.StatusOK, status)
	resp := decode[AgentHealthResponse](t, data)
	assert.Equal(t, "writer", string(resp.Role))
	assert.NotEmpty(t, resp.Capabilities)
	assert.False(t, resp.RealMode)

	status, _ = env.do(t, http.MethodGet, "/agents/lawyer/health", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAgentHandler_ExecuteErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, http.MethodPost, "/agents/planner/execute", map[string]any{"topic": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/agents/lawyer/execute", map[string]any{"topic": "T"})
	assert.Equal(t, http.StatusNotFound, status)

	status, data := env.do(t, http.MethodPost, "/agents/planner/execute?test_mode=false", map[string]any{"topic": "T"})
	assert.Equal(t, http.StatusServiceUnavailable, status, string(data))
}
