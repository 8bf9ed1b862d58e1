/*
包 agent 实现专利流水线中的各个阶段执行器。

# 概述

每个角色（planner、searcher、discusser、compressor、writer、reviewer、rewriter）
都实现同一个 [Executor] 接口：

	Execute(ctx, Task) (Result, error)

[Registry] 为每个角色保存一对实现：真实模式执行器调用 LLM，
测试模式执行器返回确定的固定内容，由工作流的 test_mode 选择。

# 真实模式

执行器拼装角色提示词，调用 [llm.Generator]，从响应中提取 JSON
（```json 代码块或第一个 {...} 对象）。解析失败时不报错，
而是用默认值填满该角色要求的字段，并把原文放在 raw_response 中。
LLM 调用失败时返回 status=failed 的结果和非空 error。

# 压缩

[Compressor] 不调用 LLM：白名单键原样保留，其余值替换为
"[compressed] " 开头的摘要字符串。重复压缩结果不变。
*/
package agent
