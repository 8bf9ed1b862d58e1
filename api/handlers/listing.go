package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/workflow"
)

// ListingHandler /workflows 与 /patents
type ListingHandler struct {
	manager *workflow.Manager
	logger  *zap.Logger
}

// ListResponse 列表响应
type ListResponse struct {
	Workflows []*workflow.Workflow `json:"workflows"`
	Summary   workflow.Summary     `json:"summary"`
}

// NewListingHandler 创建 ListingHandler
func NewListingHandler(manager *workflow.Manager, logger *zap.Logger) *ListingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingHandler{manager: manager, logger: logger}
}

// RegisterRoutes 注册列表路由
func (h *ListingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /workflows", h.HandleWorkflows)
	mux.HandleFunc("GET /patents", h.HandlePatents)
}

// HandleWorkflows 列出全部工作流及汇总。
func (h *ListingHandler) HandleWorkflows(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.manager.List())
}

// HandlePatents 只列出专利流水线类型的工作流。
func (h *ListingHandler) HandlePatents(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.manager.ListByTypes(workflow.PatentTypes...))
}

func writeList(w http.ResponseWriter, list []*workflow.Workflow) {
	if list == nil {
		list = []*workflow.Workflow{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{Workflows: list, Summary: workflow.Summarize(list)})
}
