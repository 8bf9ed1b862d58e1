package progress

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Section 一个二级标题及其正文。
type Section struct {
	Heading string
	Body    string
}

// Document 渲染为 markdown 的产物文档。
type Document struct {
	Title    string
	Meta     map[string]string
	Sections []Section
}

// Markdown 渲染文档。元数据按键排序，输出确定。
func (d Document) Markdown() string {
	var b strings.Builder
	if d.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", d.Title)
	}
	if len(d.Meta) > 0 {
		keys := sortedKeys(d.Meta)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %s\n", k, d.Meta[k])
		}
		b.WriteString("\n")
	}
	for _, s := range d.Sections {
		if s.Heading != "" {
			fmt.Fprintf(&b, "## %s\n\n", s.Heading)
		}
		body := strings.TrimSpace(s.Body)
		if body == "" {
			body = "_(empty)_"
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderValue 把任意 JSON 形状的值渲染为 markdown 正文：
// map 按键排序输出为列表，切片输出为列表项，标量原样输出。
func RenderValue(v any) string {
	var b strings.Builder
	renderValue(&b, v, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case nil:
		b.WriteString(indent + "_(none)_\n")
	case map[string]any:
		if len(val) == 0 {
			b.WriteString(indent + "_(none)_\n")
			return
		}
		for _, k := range sortedKeys(val) {
			child := val[k]
			if isScalar(child) {
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, k, scalarString(child))
				continue
			}
			fmt.Fprintf(b, "%s- **%s**:\n", indent, k)
			renderValue(b, child, depth+1)
		}
	case []any:
		if len(val) == 0 {
			b.WriteString(indent + "_(none)_\n")
			return
		}
		for _, item := range val {
			if isScalar(item) {
				fmt.Fprintf(b, "%s- %s\n", indent, scalarString(item))
				continue
			}
			fmt.Fprintf(b, "%s-\n", indent)
			renderValue(b, item, depth+1)
		}
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		renderValue(b, items, depth)
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		renderValue(b, items, depth)
	default:
		if m, ok := asStringMap(v); ok {
			renderValue(b, m, depth)
			return
		}
		if depth == 0 {
			b.WriteString(scalarString(val) + "\n")
			return
		}
		fmt.Fprintf(b, "%s%s\n", indent, scalarString(val))
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string, []map[string]any:
		return false
	default:
		_, isMap := asStringMap(v)
		return !isMap
	}
}

// asStringMap 把具名 map 类型（如 agent.Result）转成 map[string]any。
func asStringMap(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.Type().Elem().Kind() != reflect.Interface {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return "_(none)_"
	case string:
		return val
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
