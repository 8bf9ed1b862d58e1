/*
Package handlers 提供 patent-agents HTTP 接口的请求处理器。

# 概述

所有 Handler 基于标准 net/http，使用 Go 1.22 的 "METHOD /path/{id}" 路由模式，
各自通过 RegisterRoutes 注册到 http.ServeMux。

# 核心类型

  - CoordinatorHandler：工作流启动、状态、结果、取消、websocket 事件，以及 /patent 别名
  - AgentHandler      ：单个执行器的能力查询与直接执行
  - ListingHandler    ：/workflows 与 /patents 列表及汇总
  - HealthHandler     ：/health 与可插拔的 /ready 检查
  - DocsHandler       ：/openapi.json 与 Swagger UI
  - ResponseWriter    ：捕获状态码，供中间件使用

# 错误

WriteError 把 types.Error 映射为 HTTP 状态码，响应体为
{"error": {"code", "message"}, "timestamp"}。非 types.Error 的错误按 INTERNAL 返回。
请求体中的未知字段被忽略。
*/
package handlers
