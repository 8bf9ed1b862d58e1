package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/internal/ctxkeys"
	"github.com/valkryhx/patent-agents-sub002/types"
)

const (
	// DefaultTimeout 单次生成调用的上限。
	DefaultTimeout = 300 * time.Second
	// DefaultTemperature 调用方未指定温度时使用。
	DefaultTemperature = 0.3
)

// Generator 是代理依赖的最小生成接口，便于测试替换。
type Generator interface {
	Generate(ctx context.Context, userPrompt, systemPrompt string, temperature float64) (string, error)
}

// MetricsRecorder 记录 LLM 调用指标，由 internal/metrics.Collector 实现。
type MetricsRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// Client 对 Provider 的一层薄封装：拼装消息、施加超时、提取首个回复。
// 并发安全。
type Client struct {
	provider Provider
	model    string
	timeout  time.Duration
	logger   *zap.Logger
	recorder MetricsRecorder
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel 指定模型名。
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTimeout 覆盖默认 300s 超时。
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics 挂接指标记录器。
func WithMetrics(r MetricsRecorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// NewClient 创建客户端。
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "llm_client"), zap.String("provider", provider.Name()))
	return c
}

// ProviderName 返回底层 Provider 名称。
func (c *Client) ProviderName() string { return c.provider.Name() }

// Model 返回使用的模型名。
func (c *Client) Model() string { return c.model }

// Generate 发送一次非流式对话请求并返回首个回复的文本。
// systemPrompt 为空时只发送用户消息；temperature <= 0 时使用默认值 0.3。
func (c *Client) Generate(ctx context.Context, userPrompt, systemPrompt string, temperature float64) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", types.NewError(types.ErrValidation, "user prompt must not be empty")
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	messages := make([]Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userPrompt})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Completion(ctx, &ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(temperature),
		Timeout:     c.timeout,
	})
	duration := time.Since(start)

	if err != nil {
		perr := c.asProviderError(ctx, err)
		c.record("error", duration, ChatUsage{})
		c.logger.Warn("generate failed", append(ctxkeys.LogFields(ctx),
			zap.Duration("duration", duration),
			zap.Int("status_code", perr.StatusCode),
			zap.Error(perr))...)
		return "", perr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.record("empty", duration, resp.Usage)
		return "", &ProviderError{Provider: c.provider.Name(), Message: "response contained no message content"}
	}

	c.record("success", duration, resp.Usage)
	c.logger.Debug("generate completed", append(ctxkeys.LogFields(ctx),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))...)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) asProviderError(ctx context.Context, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	msg := err.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = "request timed out after " + c.timeout.String()
	}
	return &ProviderError{Provider: c.provider.Name(), Message: msg, Retryable: true, Cause: err}
}

func (c *Client) record(status string, d time.Duration, usage ChatUsage) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordLLMRequest(c.provider.Name(), c.model, status, d, usage.PromptTokens, usage.CompletionTokens)
}
