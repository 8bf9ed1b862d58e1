/*
Package types 定义跨包共享的结构化错误。

*Error 携带错误码、消息、HTTP 状态与是否可重试，HTTP 层据此
生成统一的错误响应体，客户端据此还原服务端错误码。

# 错误码

  - VALIDATION   请求参数不合法（400）
  - NOT_FOUND    工作流或角色不存在（404）
  - CONFLICT     状态冲突（409）
  - PROVIDER     LLM 上游失败（502）
  - STAGE_LOGIC  阶段执行器报告失败（500）
  - CANCELLED    工作流已取消（409）
  - INTERNAL     内部错误（500）
  - UNAVAILABLE  缺少 LLM 配置或服务关闭中（503）
*/
package types
