// Package glm 实现智谱 GLM 的 OpenAI 兼容对话接口（非流式）。
package glm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/internal/tlsutil"
	"github.com/valkryhx/patent-agents-sub002/llm"
)

const (
	DefaultBaseURL = "https://open.bigmodel.cn"
	DefaultModel   = "glm-4-plus"

	chatCompletionsPath = "/api/paas/v4/chat/completions"
	modelsPath          = "/api/paas/v4/models"
)

// Config GLM Provider 配置
type Config struct {
	APIKey  llm.Secret
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider 执行 Zhipu AI GLM LLM 提供者.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 GLM Provider。client 为 nil 时使用加固的 TLS 客户端。
func New(cfg Config, client *http.Client, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: client, logger: logger}
}

func (p *Provider) Name() string { return "glm" }

// HealthCheck 通过列出模型探活。
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(modelsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, mapError(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// 线上请求/响应结构（OpenAI 兼容）
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Created int64        `json:"created,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey.Reveal())
	req.Header.Set("Content-Type", "application/json")
}

func mapError(status int, msg string, provider string) *llm.ProviderError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	retryable := status == http.StatusTooManyRequests || status >= 500
	return &llm.ProviderError{Provider: provider, StatusCode: status, Message: msg, Retryable: retryable}
}

// Completion 发起一次非流式对话。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.ProviderError{Provider: p.Name(), Message: err.Error(), Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(chatCompletionsPath), bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.ProviderError{Provider: p.Name(), Message: "failed to create request", Cause: err}
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.ProviderError{Provider: p.Name(), Message: err.Error(), Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrMsg(resp.Body)
		p.logger.Warn("glm request rejected", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, mapError(resp.StatusCode, msg, p.Name())
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "invalid response body: " + err.Error(), Cause: err}
	}

	return toChatResponse(out, p.Name()), nil
}

func toChatResponse(in chatResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(in.Choices))
	for _, c := range in.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		})
	}
	resp := &llm.ChatResponse{
		ID:       in.ID,
		Provider: provider,
		Model:    in.Model,
		Choices:  choices,
	}
	if in.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     in.Usage.PromptTokens,
			CompletionTokens: in.Usage.CompletionTokens,
			TotalTokens:      in.Usage.TotalTokens,
		}
	}
	if in.Created != 0 {
		resp.CreatedAt = time.Unix(in.Created, 0)
	}
	return resp
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
