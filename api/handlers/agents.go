package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/agent"
)

// =============================================================================
// 🤖 Agent Handler
// =============================================================================
// 直接调用单个执行器，不经过工作流管理器，用于诊断。

// AgentHandler /agents/{role}/* 接口
type AgentHandler struct {
	registry        *agent.Registry
	defaultTestMode bool
	logger          *zap.Logger
}

// AgentHealthResponse GET /agents/{role}/health 响应
type AgentHealthResponse struct {
	Role         agent.Role `json:"role"`
	Capabilities []string   `json:"capabilities"`
	RealMode     bool       `json:"real_mode"`
}

// AgentExecuteRequest 原始任务负载，可附带 test_mode。
type AgentExecuteRequest struct {
	agent.Task
	TestMode *bool `json:"test_mode,omitempty"`
}

// AgentExecuteResponse 执行响应
type AgentExecuteResponse struct {
	Status   string       `json:"status"`
	Result   agent.Result `json:"result"`
	Duration string       `json:"duration"`
}

// NewAgentHandler 创建 AgentHandler。defaultTestMode 在请求未指定时使用。
func NewAgentHandler(registry *agent.Registry, defaultTestMode bool, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		registry:        registry,
		defaultTestMode: defaultTestMode,
		logger:          logger.With(zap.String("handler", "agents")),
	}
}

// RegisterRoutes 注册 /agents 路由
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /agents/{role}/health", h.HandleHealth)
	mux.HandleFunc("POST /agents/{role}/execute", h.HandleExecute)
}

// HandleHealth 返回角色能力。未知角色返回 404。
func (h *AgentHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	role, err := agent.ParseRole(r.PathValue("role"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, AgentHealthResponse{
		Role:         role,
		Capabilities: agent.CapabilitiesOf(role),
		RealMode:     h.registry.HasReal(role),
	})
}

// HandleExecute 执行一次角色。?test_mode= 优先于请求体中的 test_mode。
func (h *AgentHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	role, err := agent.ParseRole(r.PathValue("role"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	var req AgentExecuteRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	testMode := h.defaultTestMode
	if req.TestMode != nil {
		testMode = *req.TestMode
	}
	q, err := QueryBool(r, "test_mode")
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if q != nil {
		testMode = *q
	}

	task := req.Task
	if err := task.Validate(); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if task.PreviousResults == nil {
		task.PreviousResults = map[string]any{}
	}
	if task.Context == nil {
		task.Context = map[string]any{}
	}

	exec, err := h.registry.Lookup(role, testMode)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	start := time.Now()
	res, err := exec.Execute(r.Context(), task)
	if err != nil {
		h.logger.Warn("direct execution failed",
			zap.String("role", string(role)),
			zap.String("task_id", task.TaskID),
			zap.Bool("test_mode", testMode),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("direct execution completed",
		zap.String("role", string(role)),
		zap.String("task_id", task.TaskID),
		zap.Bool("test_mode", testMode),
		zap.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, AgentExecuteResponse{
		Status:   res.Status(),
		Result:   res,
		Duration: time.Since(start).String(),
	})
}
