package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// maxDescriptionRunes 生成描述的长度上限，模型偶尔会超出要求。
const maxDescriptionRunes = 300

// PlaceholderDescription 测试模式下缺少描述时使用的确定文本。
func PlaceholderDescription(topic string) string {
	return fmt.Sprintf("%s: a technical solution that acquires input data, processes it with an adaptive method "+
		"and outputs a controlled result, improving efficiency and reliability over existing approaches.", strings.TrimSpace(topic))
}

// GenerateDescription 请模型为主题写一段 200-300 字的技术描述。
func GenerateDescription(ctx context.Context, gen llm.Generator, topic string) (string, error) {
	if gen == nil {
		return "", types.NewError(types.ErrUnavailable, "LLM client not configured; provide a description or use test mode")
	}
	text, err := gen.Generate(ctx, descriptionPrompt(topic), SystemPrompt(RolePlanner), 0)
	if err != nil {
		return "", err
	}
	text = strings.Trim(strings.TrimSpace(text), "\"")
	if text == "" {
		return "", &llm.ProviderError{Message: "empty description generated"}
	}
	return truncateRunes(text, maxDescriptionRunes), nil
}
