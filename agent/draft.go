package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DraftSections 分节工作流中由撰写者逐节生成的章节，按产物编号排序。
var DraftSections = []string{"outline", "background", "invention", "implementation", "claims", "drawings"}

// 章节 → 草稿字段
var sectionFields = map[string]string{
	"outline":        "outline",
	"background":     "background",
	"invention":      "summary",
	"implementation": "detailed_description",
	"claims":         "claims",
	"drawings":       "drawings",
}

const (
	minClaims        = 3
	abstractGuideLen = 150
)

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Result:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// normalizeDraft 把模型输出整理成草稿形状：缺失字段取 fallback 或默认值，
// 权利要求补足到至少 3 条。
func normalizeDraft(topic, description string, obj, fallback map[string]any) map[string]any {
	if fallback == nil {
		fallback = map[string]any{}
	}
	pick := func(key, def string) string {
		return stringField(obj, key, stringField(fallback, key, def))
	}

	draft := map[string]any{
		"title":                pick("title", topic),
		"abstract":             pick("abstract", truncateRunes(firstNonEmpty(description, topic), abstractGuideLen)),
		"background":           pick("background", ""),
		"summary":              pick("summary", ""),
		"detailed_description": pick("detailed_description", firstNonEmpty(description, topic)),
		"drawings":             pick("drawings", ""),
	}

	claims := stringList(obj, "claims")
	if len(claims) == 0 {
		claims = stringList(fallback, "claims")
	}
	draft["claims"] = padClaims(claims, draft["title"].(string))
	return draft
}

func padClaims(claims []string, subject string) []string {
	out := append([]string(nil), claims...)
	if len(out) == 0 {
		out = append(out, fmt.Sprintf("1. A %s, comprising the technical features described in the detailed description.", subject))
	}
	for len(out) < minClaims {
		n := len(out) + 1
		out = append(out, fmt.Sprintf("%d. The %s according to claim 1, wherein the embodiment of claim %d is applied.", n, subject, n-1))
	}
	return out
}

// draftFromPrevious 从已有结果中还原当前草稿：优先完整草稿，否则拼装分节结果。
func draftFromPrevious(prev map[string]any) map[string]any {
	if r, ok := asMap(prev["drafting"]); ok {
		if d, ok := r["patent_draft"].(map[string]any); ok {
			return d
		}
	}

	draft := map[string]any{}
	for _, section := range DraftSections {
		content := sectionContent(prev[section])
		if content == "" {
			continue
		}
		field := sectionFields[section]
		if field == "claims" {
			draft[field] = splitClaims(content)
			continue
		}
		draft[field] = content
	}
	return draft
}

func sectionContent(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		r, ok := asMap(v)
		if !ok {
			return ""
		}
		if s, ok := r["section"].(map[string]any); ok {
			return stringField(s, "content", "")
		}
	}
	return ""
}

func splitClaims(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// draftText 给审查与改写提示词用的草稿文本。
func draftText(prev map[string]any) string {
	draft := draftFromPrevious(prev)
	if len(draft) == 0 {
		return "(no draft available)"
	}
	data, err := canonicalJSON(draft)
	if err != nil {
		return "(no draft available)"
	}
	return string(data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
