/*
包 config 加载 patentd 的运行配置。

加载顺序为 默认值 → YAML 文件 → 环境变量，后者覆盖前者。环境变量
以 PATENT_ 为前缀，按结构体 env 标签逐级拼接，例如
PATENT_SERVER_HTTP_PORT、PATENT_WORKFLOW_MAX_CONCURRENT、
PATENT_LLM_API_KEY_ENV（切片用逗号分隔）。

# 配置段

  - server     HTTP/metrics 端口、超时、CORS、限流
  - llm        provider、模型、超时、温度、密钥来源
  - workflow   默认类型、并发上限、测试模式延迟、压缩参数
  - progress   产物根目录与 watch 轮询间隔
  - log        zap 级别、格式与输出
  - telemetry  OTLP 端点、服务名与采样率

Validate 汇总所有问题一次性返回。
*/
package config
