package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/agent"
	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

// =============================================================================
// 🧪 测试服务
// =============================================================================

type testEnv struct {
	server  *httptest.Server
	manager *workflow.Manager
	store   *progress.FileStore
}

func newTestEnv(t *testing.T, gen llm.Generator) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	store, err := progress.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	reg := agent.NewDefaultRegistry(gen, agent.RegistryOptions{})
	manager := workflow.NewManager(reg, store, workflow.WithGenerator(gen), workflow.WithLogger(logger))

	mux := http.NewServeMux()
	NewCoordinatorHandler(manager, logger).RegisterRoutes(mux)
	NewAgentHandler(reg, true, logger).RegisterRoutes(mux)
	NewListingHandler(manager, logger).RegisterRoutes(mux)
	NewHealthHandler("test", []string{"coordinator", "agents"}, manager.ActiveCount, logger).RegisterRoutes(mux)
	NewDocsHandler(logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})
	return &testEnv{server: srv, manager: manager, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (e *testEnv) start(t *testing.T, body map[string]any) string {
	t.Helper()
	status, data := e.do(t, http.MethodPost, "/coordinator/workflow/start", body)
	require.Equal(t, http.StatusAccepted, status, string(data))
	resp := decode[StartResponse](t, data)
	require.NotEmpty(t, resp.WorkflowID)
	return resp.WorkflowID
}

func (e *testEnv) waitStatus(t *testing.T, id string) *workflow.Workflow {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := e.manager.Wait(ctx, id)
	require.NoError(t, err)

	status, data := e.do(t, http.MethodGet, "/coordinator/workflow/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, status)
	wf := decode[workflow.Workflow](t, data)
	return &wf
}
