/*
Package workflow 驱动专利撰写工作流：阶段定义、状态机、执行与事件。

# 概述

每个工作流由一种类型（enhanced 或 sectioned）决定一组有序阶段。
Manager 为每个工作流启动一个 goroutine，按顺序执行阶段，
通过 agent.Registry 按角色与模式（测试/真实）选择执行器。

# 状态

  - 工作流：pending → running → completed | failed | cancelled
  - 阶段：pending → running → completed | failed，或 pending → skipped

current_stage 等于已完成（含跳过）阶段数，progress 为其四舍五入百分比。

# 执行规则

  - 阶段产物先写入 progress 目录，结果随后才对 Results 可见
  - 压缩阶段之后，后续阶段只看到压缩后的上下文
  - review 与 rewrite 阶段读取全部已完成结果
  - 取消在阶段边界生效，进行中阶段的结果保留，其余阶段保持 pending
  - 阶段失败时工作流立即失败，后续阶段不再执行

# 事件

EventBus 向订阅者推送 workflow.* / stage.* / artifact.written 事件，
发布不阻塞，慢订阅者会丢事件。
*/
package workflow
