/*
包 llm 提供专利工作流使用的大语言模型接入层。

# 概述

上层代理只依赖 [Client.Generate]：给定用户提示词、可选系统提示词和温度，
返回模型生成的文本。具体的 HTTP 协议由 [Provider] 实现（见 llm/providers/glm），
密钥解析见 [ResolveSecret]。

# 错误语义

所有传输失败、超时、非 2xx 响应和无法解析的响应体都以 [*ProviderError] 返回，
不做重试。
*/
package llm
