// Package tokenizer 提供上下文压缩统计用的 token 计数。
package tokenizer

import (
	"fmt"
	"strings"
	"sync"
)

// Tokenizer 统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// 全局分词器注册表.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称注册分词器.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// GetTokenizer 返回为给定模型注册的分词器，支持前缀匹配（"glm-4" 匹配 "glm-4-plus"）。
func GetTokenizer(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}

	longest := ""
	for prefix := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(longest) {
			longest = prefix
		}
	}
	if longest != "" {
		return modelTokenizers[longest], nil
	}

	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetTokenizerOrEstimator 返回该模型注册的分词器，未注册时退回估算器。
func GetTokenizerOrEstimator(model string) Tokenizer {
	t, err := GetTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(model)
	}
	return t
}

// New 按名称构造分词器: "tiktoken" 或 "estimator"。
// tiktoken 初始化失败时（例如离线无法下载编码表）自动回退到估算器。
func New(kind, model string) Tokenizer {
	switch kind {
	case "tiktoken":
		return WithFallback(NewTiktokenTokenizer(model), NewEstimatorTokenizer(model))
	default:
		return NewEstimatorTokenizer(model)
	}
}

// fallbackTokenizer 在主分词器出错时使用备用分词器。
type fallbackTokenizer struct {
	primary   Tokenizer
	secondary Tokenizer
}

// WithFallback 组合两个分词器。
func WithFallback(primary, secondary Tokenizer) Tokenizer {
	return &fallbackTokenizer{primary: primary, secondary: secondary}
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	return f.secondary.CountTokens(text)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.secondary.Name()
}
