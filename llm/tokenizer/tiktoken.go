package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的分词器。GLM 没有公开的编码表，按 cl100k_base 近似。
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 将模型前缀映射到 tiktoken 编码。
var modelEncodings = map[string]string{
	"glm-4":  "cl100k_base",
	"glm-3":  "cl100k_base",
	"gpt-4o": "o200k_base",
	"gpt-4":  "cl100k_base",
}

// NewTiktokenTokenizer 为给定模型创建分词器，编码在首次使用时加载.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	longest := ""
	for prefix, enc := range modelEncodings {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix && len(prefix) > len(longest) {
			longest = prefix
			encoding = enc
		}
	}
	return &TiktokenTokenizer{model: model, encoding: encoding}
}

// init 延迟初始化 tiktoken 编码（第一次使用时可能下载数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterGLMTokenizers 为已知模型前缀注册 tiktoken 分词器（带估算回退）。
func RegisterGLMTokenizers() {
	for prefix := range modelEncodings {
		RegisterTokenizer(prefix, WithFallback(NewTiktokenTokenizer(prefix), NewEstimatorTokenizer(prefix)))
	}
}
