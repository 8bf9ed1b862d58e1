// Package metrics 提供服务内部的 Prometheus 指标收集：HTTP、LLM 调用、
// 阶段执行与工作流生命周期。
package metrics
