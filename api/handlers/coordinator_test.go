package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/testutil"
	"github.com/valkryhx/patent-agents-sub002/testutil/mocks"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

func TestCoordinator_TestModeHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t, map[string]any{"topic": "AI Patent Topic", "description": "x", "test_mode": true})

	wf := env.waitStatus(t, id)
	assert.Equal(t, workflow.StatusCompleted, wf.Status)
	assert.Equal(t, 100, wf.Progress)
	assert.Equal(t, 7, wf.TotalStages)
	assert.Equal(t, "AI Patent Topic", wf.Topic)

	status, data := env.do(t, http.MethodGet, "/coordinator/workflow/"+id+"/results", nil)
	require.Equal(t, http.StatusOK, status)
	var res struct {
		WorkflowID string                    `json:"workflow_id"`
		Results    map[string]map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, id, res.WorkflowID)
	for _, stage := range []string{"planning", "search", "discussion", "compression_before_drafting", "drafting", "review", "rewrite"} {
		assert.Contains(t, res.Results, stage)
	}

	final, err := env.store.Read(id, progress.Final)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(final))
}

func TestCoordinator_StatusShape(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t, map[string]any{"topic": "Shape", "test_mode": true, "unknown_field": 1})
	env.waitStatus(t, id)

	_, data := env.do(t, http.MethodGet, "/coordinator/workflow/"+id+"/status", nil)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"workflow_id", "topic", "status", "test_mode", "progress", "current_stage", "total_stages", "stages"} {
		assert.Contains(t, raw, key)
	}
	stage := raw["stages"].([]any)[0].(map[string]any)
	assert.Contains(t, stage, "error")
	assert.Nil(t, stage["error"])
}

func TestCoordinator_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	status, data := env.do(t, http.MethodPost, "/coordinator/workflow/start", map[string]any{"topic": " "})
	assert.Equal(t, http.StatusBadRequest, status)
	errResp := decode[ErrorResponse](t, data)
	assert.Equal(t, "VALIDATION", errResp.Error.Code)

	status, _ = env.do(t, http.MethodPost, "/coordinator/workflow/start", map[string]any{"topic": "x", "workflow_type": "bogus"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/coordinator/workflow/start", map[string]any{"topic": "x", "test_mode": false})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	assert.Empty(t, env.manager.List())
}

func TestCoordinator_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{
		"/coordinator/workflow/nope/status",
		"/coordinator/workflow/nope/results",
		"/patent/nope/status",
	} {
		status, _ := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, status, path)
	}
	status, _ := env.do(t, http.MethodPost, "/coordinator/workflow/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCoordinator_ProviderFailure(t *testing.T) {
	p := mocks.NewMockProvider().WithError(errors.New("dial tcp: connection refused"))
	env := newTestEnv(t, llm.NewClient(p))

	id := env.start(t, map[string]any{"topic": "Unreachable", "description": "d", "test_mode": false})
	wf := env.waitStatus(t, id)

	assert.Equal(t, workflow.StatusFailed, wf.Status)
	assert.NotEmpty(t, wf.Error)
	assert.Equal(t, workflow.StageFailed, wf.Stages[0].Status)
	for _, st := range wf.Stages[1:] {
		assert.Equal(t, workflow.StagePending, st.Status)
	}
	for _, name := range progress.NumberedArtifacts {
		assert.False(t, env.store.Exists(id, name), name)
	}
}

func TestCoordinator_Cancellation(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t, map[string]any{
		"topic":     "Cancel me",
		"test_mode": true,
		"context":   map[string]any{"delay_ms": 100},
	})

	testutil.AssertEventuallyTrue(t, func() bool {
		wf, err := env.manager.Status(id)
		return err == nil && wf.CurrentStage >= 2
	}, 5*time.Second)

	status, data := env.do(t, http.MethodPost, "/coordinator/workflow/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[CancelResponse](t, data).CancelRequested)

	wf := env.waitStatus(t, id)
	assert.Equal(t, workflow.StatusCancelled, wf.Status)
	assert.Equal(t, workflow.StageCompleted, wf.Stages[0].Status)
	assert.Equal(t, workflow.StageCompleted, wf.Stages[1].Status)
	for _, st := range wf.Stages[wf.CurrentStage:] {
		assert.Contains(t, []workflow.StageStatus{workflow.StagePending, workflow.StageSkipped}, st.Status)
	}

	// 已结束的工作流再次取消不变
	status, data = env.do(t, http.MethodPost, "/coordinator/workflow/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, workflow.StatusCancelled, decode[CancelResponse](t, data).Status)
}

func TestPatentAliases(t *testing.T) {
	env := newTestEnv(t, nil)

	status, data := env.do(t, http.MethodGet, "/patent/generate?topic=Alias&test_mode=true&workflow_type=sectioned", nil)
	require.Equal(t, http.StatusAccepted, status, string(data))
	resp := decode[StartResponse](t, data)
	assert.Equal(t, workflow.TypeSectioned, resp.WorkflowType)
	env.waitStatus(t, resp.WorkflowID)

	status, data = env.do(t, http.MethodGet, "/patent/"+resp.WorkflowID+"/status", nil)
	require.Equal(t, http.StatusOK, status)
	wf := decode[workflow.Workflow](t, data)
	assert.Equal(t, 13, wf.TotalStages)

	status, _ = env.do(t, http.MethodGet, "/patent/generate?topic=Alias&test_mode=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCoordinator_EventsWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t, map[string]any{
		"topic":     "Streamed",
		"test_mode": true,
		"context":   map[string]any{"delay_ms": 20},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/coordinator/workflow/" + id + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var types []workflow.EventType
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		var evt workflow.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		assert.Equal(t, id, evt.WorkflowID)
		types = append(types, evt.Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, workflow.EventWorkflowSnapshot, types[0])
	assert.True(t, types[len(types)-1].Terminal())
}
