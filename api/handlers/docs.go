package handlers

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/api"
)

// DocsHandler 提供 OpenAPI 文档与 Swagger UI
type DocsHandler struct {
	logger *zap.Logger

	once    sync.Once
	spec    []byte
	specErr error
}

// NewDocsHandler 创建 DocsHandler
func NewDocsHandler(logger *zap.Logger) *DocsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocsHandler{logger: logger}
}

// RegisterRoutes 注册文档路由
func (h *DocsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /openapi.json", h.HandleOpenAPI)
	mux.HandleFunc("GET /docs", h.HandleDocs)
}

// HandleOpenAPI 返回 JSON 格式的 OpenAPI 文档。
func (h *DocsHandler) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() { h.spec, h.specErr = api.OpenAPIJSON() })
	if h.specErr != nil {
		WriteError(w, h.specErr, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}

// HandleDocs Swagger UI 页面，资源从 CDN 加载。
func (h *DocsHandler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(swaggerPage))
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Patent Agents API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function () {
      SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" });
    };
  </script>
</body>
</html>
`
