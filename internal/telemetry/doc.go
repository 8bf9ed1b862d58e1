// Package telemetry 负责 patentd 的 OpenTelemetry 初始化：
// OTLP gRPC 导出 trace 与 metric，关闭时保持全局 noop provider。
package telemetry
