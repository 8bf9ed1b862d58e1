package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3", []string{"coordinator", "agents"}, func() int { return 4 }, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, 4, resp.ActiveWorkflows)
	assert.Equal(t, []string{"coordinator", "agents"}, resp.Services)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	h := NewHealthHandler("dev", nil, nil, zap.NewNop())
	h.RegisterCheck(NewFuncCheck("progress_dir", func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.RegisterCheck(NewFuncCheck("llm", func(context.Context) error { return errors.New("no api key") }))
	w = httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadyStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "unready", resp.Status)
	assert.Equal(t, "pass", resp.Checks["progress_dir"].Status)
	assert.Equal(t, "fail", resp.Checks["llm"].Status)
	assert.Equal(t, "no api key", resp.Checks["llm"].Message)
}

func TestDocsHandler(t *testing.T) {
	h := NewDocsHandler(nil)

	w := httptest.NewRecorder()
	h.HandleOpenAPI(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc, "paths")

	w = httptest.NewRecorder()
	h.HandleDocs(w, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/openapi.json")
}
