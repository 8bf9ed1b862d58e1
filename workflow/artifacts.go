package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valkryhx/patent-agents-sub002/agent"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 📄 阶段结果 → markdown 产物
// =============================================================================
// 产物内容只依赖阶段结果和请求参数，不含 ID 与时间戳，
// 同样输入的测试模式工作流产出字节相同的文件。

// 草稿字段 → 编号产物
var draftArtifacts = []struct {
	name    string
	field   string
	heading string
}{
	{progress.Background, "background", "Background"},
	{progress.Invention, "summary", "Summary of the Invention"},
	{progress.Implementation, "detailed_description", "Detailed Description"},
	{progress.Claims, "claims", "Claims"},
	{progress.Drawings, "drawings", "Description of Drawings"},
}

// renderArtifacts 返回 产物名 → 内容。
func renderArtifacts(def StageDef, wf *Workflow, res agent.Result) (map[string]string, error) {
	meta := map[string]string{
		"stage":    def.Name,
		"executor": string(def.Role),
		"mode":     modeLabel(wf.TestMode),
	}
	out := make(map[string]string, len(def.Artifacts))

	switch def.Role {
	case agent.RolePlanner:
		doc := progress.Document{
			Title: wf.Topic,
			Meta:  meta,
			Sections: []progress.Section{
				{Heading: "Abstract", Body: wf.Description},
				{Heading: "Patent Strategy", Body: progress.RenderValue(res["strategy"])},
			},
		}
		out[progress.TitleAbstract] = withRaw(doc, res).Markdown()

	case agent.RoleWriter:
		if section, ok := res["section"].(map[string]any); ok {
			name, _ := section["name"].(string)
			doc := progress.Document{
				Title:    sectionTitle(name),
				Meta:     meta,
				Sections: []progress.Section{{Body: fmt.Sprint(section["content"])}},
			}
			for _, a := range def.Artifacts {
				out[a] = withRaw(doc, res).Markdown()
			}
			break
		}
		draft, _ := res["patent_draft"].(map[string]any)
		out[progress.Outline] = outlineDoc(wf, meta, draft).Markdown()
		for _, d := range draftArtifacts {
			doc := progress.Document{
				Title:    d.heading,
				Meta:     meta,
				Sections: []progress.Section{{Body: draftField(draft, d.field)}},
			}
			out[d.name] = doc.Markdown()
		}

	case agent.RoleReviewer:
		doc := progress.Document{
			Title:    "Review",
			Meta:     meta,
			Sections: reviewSections(res["review"]),
		}
		out[progress.Review] = withRaw(doc, res).Markdown()

	case agent.RoleRewriter:
		final, _ := res["final_draft"].(map[string]any)
		out[progress.Final] = withRaw(finalDoc(wf, meta, final), res).Markdown()

	default:
		// 检索、讨论、压缩：上下文产物，输出整份负载
		doc := progress.Document{
			Title:    sectionTitle(def.Name),
			Meta:     meta,
			Sections: payloadSections(res),
		}
		for _, a := range def.Artifacts {
			out[a] = doc.Markdown()
		}
	}

	for _, a := range def.Artifacts {
		if _, ok := out[a]; !ok {
			return nil, types.Errorf(types.ErrInternal, "stage %s produced no content for artifact %s", def.Name, a)
		}
	}
	return out, nil
}

func modeLabel(testMode bool) string {
	if testMode {
		return "test"
	}
	return "real"
}

func sectionTitle(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func draftField(draft map[string]any, field string) string {
	switch v := draft[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return progress.RenderValue(v)
	}
}

func outlineDoc(wf *Workflow, meta map[string]string, draft map[string]any) progress.Document {
	title := draftField(draft, "title")
	if title == "" {
		title = wf.Topic
	}
	var headings []string
	for _, d := range draftArtifacts {
		headings = append(headings, "- "+d.heading)
	}
	return progress.Document{
		Title: title,
		Meta:  meta,
		Sections: []progress.Section{
			{Heading: "Abstract", Body: draftField(draft, "abstract")},
			{Heading: "Outline", Body: strings.Join(headings, "\n")},
		},
	}
}

func finalDoc(wf *Workflow, meta map[string]string, final map[string]any) progress.Document {
	title := draftField(final, "title")
	if title == "" {
		title = wf.Topic
	}
	sections := []progress.Section{{Heading: "Abstract", Body: draftField(final, "abstract")}}
	for _, d := range draftArtifacts {
		sections = append(sections, progress.Section{Heading: d.heading, Body: draftField(final, d.field)})
	}
	if notes, ok := final["revision_notes"]; ok {
		sections = append(sections, progress.Section{Heading: "Revision Notes", Body: progress.RenderValue(notes)})
	}
	return progress.Document{Title: title, Meta: meta, Sections: sections}
}

func reviewSections(v any) []progress.Section {
	review, _ := v.(map[string]any)
	var sections []progress.Section
	for _, key := range []string{"compliance", "technical_validity", "clarity", "overall_assessment", "recommendations"} {
		if val, ok := review[key]; ok {
			sections = append(sections, progress.Section{Heading: sectionTitle(key), Body: progress.RenderValue(val)})
		}
	}
	return sections
}

var commonResultKeys = map[string]bool{
	"status": true, "stage": true, "executor": true, "test_mode": true, "message": true, "raw_response": true,
}

func payloadSections(res agent.Result) []progress.Section {
	payload := make(map[string]any)
	for k, v := range res {
		if !commonResultKeys[k] {
			payload[k] = v
		}
	}
	var sections []progress.Section
	for _, k := range sortedKeys(payload) {
		sections = append(sections, progress.Section{Heading: sectionTitle(k), Body: progress.RenderValue(payload[k])})
	}
	if raw, ok := res["raw_response"].(string); ok {
		sections = append(sections, progress.Section{Heading: "Raw Response", Body: raw})
	}
	return sections
}

// withRaw 解析失败的阶段把原文附在产物末尾。
func withRaw(doc progress.Document, res agent.Result) progress.Document {
	if raw, ok := res["raw_response"].(string); ok && raw != "" {
		doc.Sections = append(doc.Sections, progress.Section{Heading: "Raw Response", Body: raw})
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
