// Package tlsutil 为访问 LLM 服务商的出站 HTTP 客户端提供统一的 TLS 加固配置。
package tlsutil
