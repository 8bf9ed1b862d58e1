package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/api/handlers"
	"github.com/valkryhx/patent-agents-sub002/client"
	"github.com/valkryhx/patent-agents-sub002/config"
	"github.com/valkryhx/patent-agents-sub002/types"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

// testConfig 不含任何 LLM 密钥，服务只能运行测试模式。
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Progress.Root = t.TempDir()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Server.RateLimitRPS = 0
	cfg.Workflow.Tokenizer = "estimator"
	cfg.LLM.APIKeyEnv = []string{"PATENTD_TEST_UNSET_KEY"}
	cfg.LLM.APIKeyFiles = nil
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(testConfig(t), zap.NewNop(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ts
}

func TestServer_FallsBackToTestMode(t *testing.T) {
	srv, ts := newTestServer(t)
	assert.Nil(t, srv.gen)
	assert.True(t, srv.defaultTestMode())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	ready, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestServer_RealModeRequestRejected(t *testing.T) {
	_, ts := newTestServer(t)

	off := false
	_, err := client.New(ts.URL).Start(context.Background(), handlers.StartRequest{Topic: "Widget", TestMode: &off})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnavailable))
}

func TestServer_EndToEndWorkflowAndMetrics(t *testing.T) {
	srv, ts := newTestServer(t)
	c := client.New(ts.URL)

	started, err := c.Start(context.Background(), handlers.StartRequest{Topic: "Self-healing concrete", WorkflowType: "sectioned"})
	require.NoError(t, err)
	assert.True(t, started.TestMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wf, err := c.WaitForCompletion(ctx, started.WorkflowID, 10*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, wf.Status)
	assert.Equal(t, 100, wf.Progress)
	assert.Len(t, wf.Stages, 13)

	rec := httptest.NewRecorder()
	srv.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "patent_agents_workflows_started_total")
	assert.Contains(t, body, "patent_agents_http_requests_total")
	assert.Contains(t, body, `path="/coordinator/workflow/:id/status"`)
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, err := NewServer(testConfig(t), zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.httpManager.Addr() + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.False(t, srv.httpManager.IsRunning())
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	srv, err := NewServer(testConfig(t), zap.NewNop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_InvalidDefaultType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.DefaultType = "bogus"
	_, err := NewServer(cfg, nil, nil)
	assert.Error(t, err)
}
