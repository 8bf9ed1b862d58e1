// Package api 内嵌 patent-agents HTTP 接口的 OpenAPI 3 文档。
//
// # 接口概览
//
//   - /coordinator/workflow/*：启动、状态、结果、取消、websocket 事件
//   - /agents/{role}/*：单个执行器的能力查询与直接执行
//   - /workflows、/patents：列表与汇总
//   - /patent/*：启动与状态的别名
//   - /health、/ready：健康与就绪检查
//
// # OpenAPI 文档
//
// 静态文件位于 api/openapi.yaml，运行时通过以下地址提供：
//   - GET /openapi.json（由 YAML 转换）
//   - GET /docs（Swagger UI）
//
// 路由与文档的一致性由 openapi_test.go 校验。
package api
