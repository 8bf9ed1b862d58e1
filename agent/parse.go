package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 🧩 LLM 响应解析
// =============================================================================

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON 从可能夹杂说明文字的响应中取出 JSON 对象文本。
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if m := fencedJSON.FindStringSubmatch(response); len(m) > 1 {
			inner := strings.TrimSpace(m[1])
			if strings.HasPrefix(inner, "{") {
				return inner
			}
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

// decodeObject 把响应解析为 JSON 对象；失败返回 STAGE_LOGIC 错误，
// 由调用方降级为默认值 + raw_response。
func decodeObject(response string) (map[string]any, error) {
	text := extractJSON(response)
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, types.NewError(types.ErrStageLogic, "response is not a JSON object").WithCause(err)
	}
	if obj == nil {
		return nil, types.NewError(types.ErrStageLogic, "response JSON is null")
	}
	return obj, nil
}

// unwrapPayload 模型有时会把负载再包一层（{"strategy": {...}}）。
func unwrapPayload(obj map[string]any, key string) map[string]any {
	if obj == nil {
		return nil
	}
	if inner, ok := obj[key].(map[string]any); ok {
		return inner
	}
	return obj
}

// canonicalJSON 稳定序列化：map 键有序，不转义 HTML 字符。
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// --- 取值辅助 ---

func stringField(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64, bool:
		return fmt.Sprint(v)
	case map[string]any, []any:
		if b, err := canonicalJSON(v); err == nil {
			return string(b)
		}
	}
	return def
}

func numberField(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f
		}
	}
	return def
}

func stringList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := firstString(it, "text", "content", "claim", "title", "name", "description"); s != "" {
					out = append(out, s)
				}
			default:
				if item != nil {
					out = append(out, fmt.Sprint(item))
				}
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// oneOf 不区分大小写匹配枚举值，匹配不到返回 def。
func oneOf(value string, allowed []string, def string) string {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(value), a) {
			return a
		}
	}
	lower := strings.ToLower(value)
	for _, a := range allowed {
		if strings.Contains(lower, strings.ToLower(a)) {
			return a
		}
	}
	return def
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
