package llm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/testutil/mocks"
	"github.com/valkryhx/patent-agents-sub002/types"
)

type recordedCall struct {
	status string
	model  string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordLLMRequest(_, model, status string, _ time.Duration, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{status: status, model: model})
}

func TestGenerate_BuildsMessages(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse("  drafted text \n")
	c := llm.NewClient(p, llm.WithModel("glm-4-plus"))

	out, err := c.Generate(context.Background(), "write claims", "you are a patent writer", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "drafted text", out)

	req := p.LastCall()
	require.NotNil(t, req)
	assert.Equal(t, "glm-4-plus", req.Model)
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "write claims", req.Messages[1].Content)
}

func TestGenerate_NoSystemPromptAndDefaultTemperature(t *testing.T) {
	p := mocks.NewMockProvider()
	c := llm.NewClient(p)

	_, err := c.Generate(context.Background(), "hello", "", 0)
	require.NoError(t, err)

	req := p.LastCall()
	require.Len(t, req.Messages, 1)
	assert.InDelta(t, llm.DefaultTemperature, req.Temperature, 0.0001)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	p := mocks.NewMockProvider()
	c := llm.NewClient(p)

	_, err := c.Generate(context.Background(), "   ", "sys", 0.3)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
	assert.Equal(t, 0, p.CallCount())
}

func TestGenerate_ProviderErrorPassthrough(t *testing.T) {
	want := &llm.ProviderError{Provider: "mock", StatusCode: 401, Message: "bad key"}
	rec := &fakeRecorder{}
	c := llm.NewClient(mocks.NewMockProvider().WithError(want), llm.WithMetrics(rec), llm.WithModel("m"))

	_, err := c.Generate(context.Background(), "x", "", 0.3)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Same(t, want, perr)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{status: "error", model: "m"}, rec.calls[0])
}

func TestGenerate_PlainErrorWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	c := llm.NewClient(mocks.NewMockProvider().WithError(cause))

	_, err := c.Generate(context.Background(), "x", "", 0.3)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "mock", perr.Provider)
}

func TestGenerate_Timeout(t *testing.T) {
	p := mocks.NewMockProvider().WithDelay(time.Second)
	c := llm.NewClient(p, llm.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Generate(context.Background(), "x", "", 0.3)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "timed out")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGenerate_EmptyContent(t *testing.T) {
	c := llm.NewClient(mocks.NewMockProvider().WithResponse("  "))

	_, err := c.Generate(context.Background(), "x", "", 0.3)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestProviderError_ToError(t *testing.T) {
	perr := &llm.ProviderError{Provider: "glm", StatusCode: 500, Message: "down", Retryable: true}
	e := perr.ToError()
	assert.Equal(t, types.ErrProvider, e.Code)
	assert.Equal(t, 502, e.StatusCode())
	assert.True(t, e.Retryable)
	assert.ErrorIs(t, e, perr)
}
