// Package ctxkeys 定义跨包传递的 context 键：请求 ID、工作流 ID 与阶段名。
package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	workflowIDKey contextKey = "workflow_id"
	stageKey      contextKey = "stage"
)

// WithRequestID 设置 HTTP 请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取 HTTP 请求 ID
func RequestID(ctx context.Context) (string, bool) {
	return lookup(ctx, requestIDKey)
}

// WithWorkflowID 设置工作流 ID
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowID 获取工作流 ID
func WorkflowID(ctx context.Context) (string, bool) {
	return lookup(ctx, workflowIDKey)
}

// WithStage 设置当前阶段名
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// Stage 获取当前阶段名
func Stage(ctx context.Context) (string, bool) {
	return lookup(ctx, stageKey)
}

// LogFields 把 context 中已有的键转换为 zap 字段，缺失的键跳过。
func LogFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if v, ok := RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", v))
	}
	if v, ok := WorkflowID(ctx); ok {
		fields = append(fields, zap.String("workflow_id", v))
	}
	if v, ok := Stage(ctx); ok {
		fields = append(fields, zap.String("stage", v))
	}
	return fields
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
