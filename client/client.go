// Package client 是协调器 HTTP 接口的类型化客户端，供 launch 命令与外部监控使用。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/api/handlers"
	"github.com/valkryhx/patent-agents-sub002/types"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

// DefaultPollInterval WaitForCompletion 的默认轮询间隔
const DefaultPollInterval = 2 * time.Second

// Client 协调器客户端
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建客户端。baseURL 形如 http://localhost:8000。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start 启动工作流
func (c *Client) Start(ctx context.Context, req handlers.StartRequest) (*handlers.StartResponse, error) {
	var out handlers.StartResponse
	if err := c.do(ctx, http.MethodPost, "/coordinator/workflow/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status 查询工作流状态
func (c *Client) Status(ctx context.Context, id string) (*workflow.Workflow, error) {
	var out workflow.Workflow
	if err := c.do(ctx, http.MethodGet, "/coordinator/workflow/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results 查询已完成阶段的结果
func (c *Client) Results(ctx context.Context, id string) (*workflow.Results, error) {
	var out workflow.Results
	if err := c.do(ctx, http.MethodGet, "/coordinator/workflow/"+url.PathEscape(id)+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel 请求取消
func (c *Client) Cancel(ctx context.Context, id string) (*handlers.CancelResponse, error) {
	var out handlers.CancelResponse
	if err := c.do(ctx, http.MethodPost, "/coordinator/workflow/"+url.PathEscape(id)+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health 服务健康状态
func (c *Client) Health(ctx context.Context) (*handlers.HealthStatus, error) {
	var out handlers.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List 列出全部工作流
func (c *Client) List(ctx context.Context) (*handlers.ListResponse, error) {
	var out handlers.ListResponse
	if err := c.do(ctx, http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForCompletion 轮询直到工作流进入终态。onUpdate 在进度变化时调用，可为 nil。
func (c *Client) WaitForCompletion(ctx context.Context, id string, interval time.Duration, onUpdate func(*workflow.Workflow)) (*workflow.Workflow, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProgress := -1
	for {
		wf, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if wf.Progress != lastProgress || wf.Status.IsTerminal() {
			lastProgress = wf.Progress
			if onUpdate != nil {
				onUpdate(wf)
			}
		}
		if wf.Status.IsTerminal() {
			return wf, nil
		}

		select {
		case <-ctx.Done():
			return wf, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewError(types.ErrUnavailable, "coordinator unreachable").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	c.logger.Debug("coordinator request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrInternal, "invalid response body").WithCause(err)
	}
	return nil
}

// decodeError 把错误响应还原为 *types.Error，保留服务端错误码。
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body handlers.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		return types.NewError(types.ErrorCode(body.Error.Code), body.Error.Message).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(body.Error.Retryable)
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return types.NewError(types.ErrInternal, msg).WithHTTPStatus(resp.StatusCode)
}
