/*
Package testutil 提供测试共享的上下文、异步等待与 JSON 辅助函数。

# 子包

  - testutil/mocks: MockProvider（LLM Provider），支持固定响应、按请求生成响应、
    错误注入、延迟和调用计数，用于验证测试模式从不访问 LLM。
*/
package testutil
