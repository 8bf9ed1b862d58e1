package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/types"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

// =============================================================================
// 🧭 Coordinator Handler
// =============================================================================

// CoordinatorHandler 工作流生命周期接口
type CoordinatorHandler struct {
	manager *workflow.Manager
	logger  *zap.Logger
	// wsWriteTimeout 单条 websocket 消息的写超时
	wsWriteTimeout time.Duration
}

// StartRequest POST /coordinator/workflow/start 请求体
type StartRequest struct {
	Topic        string         `json:"topic"`
	Description  string         `json:"description,omitempty"`
	WorkflowType string         `json:"workflow_type,omitempty"`
	TestMode     *bool          `json:"test_mode,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// StartResponse 启动响应
type StartResponse struct {
	WorkflowID   string          `json:"workflow_id"`
	Status       workflow.Status `json:"status"`
	WorkflowType workflow.Type   `json:"workflow_type"`
	TestMode     bool            `json:"test_mode"`
	Description  string          `json:"description"`
}

// CancelResponse 取消响应
type CancelResponse struct {
	WorkflowID      string          `json:"workflow_id"`
	Status          workflow.Status `json:"status"`
	CancelRequested bool            `json:"cancel_requested"`
}

// NewCoordinatorHandler 创建 CoordinatorHandler
func NewCoordinatorHandler(manager *workflow.Manager, logger *zap.Logger) *CoordinatorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoordinatorHandler{
		manager:        manager,
		logger:         logger.With(zap.String("handler", "coordinator")),
		wsWriteTimeout: 5 * time.Second,
	}
}

// RegisterRoutes 注册 /coordinator 与 /patent 路由
func (h *CoordinatorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /coordinator/workflow/start", h.HandleStart)
	mux.HandleFunc("GET /coordinator/workflow/{id}/status", h.HandleStatus)
	mux.HandleFunc("GET /coordinator/workflow/{id}/results", h.HandleResults)
	mux.HandleFunc("POST /coordinator/workflow/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("GET /coordinator/workflow/{id}/events", h.HandleEvents)

	mux.HandleFunc("GET /patent/generate", h.HandleGenerate)
	mux.HandleFunc("GET /patent/{id}/status", h.HandleStatus)
}

// HandleStart 启动工作流，立即返回 202。
func (h *CoordinatorHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.start(w, r, req)
}

// HandleGenerate GET /patent/generate?topic=&description=&test_mode=&workflow_type=
func (h *CoordinatorHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	testMode, err := QueryBool(r, "test_mode")
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.start(w, r, StartRequest{
		Topic:        q.Get("topic"),
		Description:  q.Get("description"),
		WorkflowType: q.Get("workflow_type"),
		TestMode:     testMode,
	})
}

func (h *CoordinatorHandler) start(w http.ResponseWriter, r *http.Request, req StartRequest) {
	if strings.TrimSpace(req.Topic) == "" {
		WriteErrorMessage(w, types.ErrValidation, "topic is required", h.logger)
		return
	}

	wf, err := h.manager.Start(r.Context(), workflow.StartRequest{
		Topic:        req.Topic,
		Description:  req.Description,
		WorkflowType: req.WorkflowType,
		TestMode:     req.TestMode,
		Context:      req.Context,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusAccepted, StartResponse{
		WorkflowID:   wf.ID,
		Status:       wf.Status,
		WorkflowType: wf.Type,
		TestMode:     wf.TestMode,
		Description:  wf.Description,
	})
}

// HandleStatus 返回工作流状态投影。
func (h *CoordinatorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	wf, err := h.manager.Status(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, wf)
}

// HandleResults 返回已完成阶段的结果。
func (h *CoordinatorHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Results(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// HandleCancel 请求取消；已结束的工作流原样返回。
func (h *CoordinatorHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	wf, err := h.manager.Cancel(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, CancelResponse{
		WorkflowID:      wf.ID,
		Status:          wf.Status,
		CancelRequested: wf.CancelRequested,
	})
}

// =============================================================================
// 📡 WebSocket 事件流
// =============================================================================

// HandleEvents 把工作流事件推送到 websocket。
// 第一条消息是当前快照；工作流结束后服务端正常关闭连接。
func (h *CoordinatorHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, unsubscribe, err := h.manager.Subscribe(id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	defer unsubscribe()

	snap, err := h.manager.Status(id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("workflow_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 只写不读；CloseRead 处理对端的关闭帧
	ctx := conn.CloseRead(r.Context())

	first := workflow.Event{
		Type:       workflow.EventWorkflowSnapshot,
		WorkflowID: id,
		Status:     string(snap.Status),
		Progress:   snap.Progress,
		Error:      snap.Error,
		Timestamp:  snap.UpdatedAt,
	}
	if err := h.writeEvent(ctx, conn, first); err != nil {
		return
	}
	if snap.Status.IsTerminal() {
		conn.Close(websocket.StatusNormalClosure, "workflow finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event stream closed")
				return
			}
			if err := h.writeEvent(ctx, conn, evt); err != nil {
				return
			}
			if evt.Type.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "workflow finished")
				return
			}
		}
	}
}

func (h *CoordinatorHandler) writeEvent(ctx context.Context, conn *websocket.Conn, evt workflow.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.wsWriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write failed", zap.String("workflow_id", evt.WorkflowID), zap.Error(err))
		return err
	}
	return nil
}
