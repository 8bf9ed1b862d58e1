package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	_, ok := WorkflowID(ctx)
	assert.False(t, ok)
	assert.Empty(t, LogFields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithStage(ctx, "planning")

	id, ok := WorkflowID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "wf-1", id)
	stage, _ := Stage(ctx)
	assert.Equal(t, "planning", stage)
	assert.Len(t, LogFields(ctx), 3)
}

func TestEmptyValueIsAbsent(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	_, ok := RequestID(ctx)
	assert.False(t, ok)
}
