package agent

import (
	"fmt"
	"strings"
)

// =============================================================================
// 📝 角色提示词
// =============================================================================

const jsonOnly = "Respond with ONLY one JSON object. Do not add any text before or after it."

var systemPrompts = map[Role]string{
	RolePlanner:   "You are a senior patent strategist. You assess novelty, inventive step and patentability of a technical idea and plan how to protect it.",
	RoleSearcher:  "You are a prior-art search specialist. You list the closest known patents and publications and rate the infringement and novelty risk.",
	RoleDiscusser: "You are a panel of senior engineers. You discuss a technical idea and extract concrete innovation points and technical insights.",
	RoleWriter:    "You are an experienced patent attorney. You draft Chinese invention patent applications with precise, supportable claims.",
	RoleReviewer:  "You are a patent examiner. You review a draft for formal compliance, technical validity and clarity.",
	RoleRewriter:  "You are a patent attorney finalising an application. You revise the draft so it addresses every review finding.",
}

// SystemPrompt 返回角色的系统提示词。
func SystemPrompt(role Role) string { return systemPrompts[role] }

func promptHeader(b *strings.Builder, task Task) {
	fmt.Fprintf(b, "Topic: %s\n", task.Topic)
	if d := strings.TrimSpace(task.Description); d != "" {
		fmt.Fprintf(b, "Description: %s\n", d)
	}
	b.WriteString("\n")
}

func promptContext(b *strings.Builder, prev map[string]any, keys ...string) {
	if len(prev) == 0 {
		return
	}
	selected := prev
	if len(keys) > 0 {
		selected = make(map[string]any, len(keys))
		for _, k := range keys {
			if v, ok := prev[k]; ok {
				selected[k] = v
			}
		}
		if len(selected) == 0 {
			selected = prev
		}
	}
	data, err := canonicalJSON(selected)
	if err != nil {
		return
	}
	b.WriteString("Context from previous stages (JSON):\n")
	b.Write(data)
	b.WriteString("\n\n")
}

func plannerPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	b.WriteString(`Produce a patent strategy as JSON with the fields:
{"topic": string, "novelty_score": number 0-10, "inventive_step_score": number 0-10,
 "patentability_assessment": "Weak"|"Moderate"|"Strong", "key_innovation_areas": [string],
 "competitive_analysis": string, "risk_assessment": string, "timeline_estimate": string,
 "resource_requirements": string, "success_probability": number 0-1}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

func searcherPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	promptContext(&b, task.PreviousResults, "planning", "core_strategy")
	b.WriteString(`List the closest prior art as JSON with the fields:
{"summary": string, "patents_found": integer,
 "relevant_patents": [{"id": string, "title": string, "relevance": number 0-1}],
 "risk_assessment": "Low"|"Medium"|"High", "recommendations": [string]}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

func discusserPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	promptContext(&b, task.PreviousResults, "planning", "search")
	b.WriteString(`Discuss the idea and answer as JSON with the fields:
{"innovations": [string], "technical_insights": [string]}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

func writerPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	promptContext(&b, task.PreviousResults)
	if section := sectionName(task); section != "" {
		fmt.Fprintf(&b, "Write the %q section of the patent application as JSON with the fields:\n", section)
		b.WriteString(`{"name": string, "content": string}
`)
		if section == "claims" {
			b.WriteString("The content must contain at least 3 numbered claims, starting with an independent claim.\n")
		}
		b.WriteString(jsonOnly)
		return b.String()
	}
	b.WriteString(`Write the full patent draft as JSON with the fields:
{"title": string, "abstract": string (at most about 150 characters), "background": string,
 "summary": string, "detailed_description": string, "claims": [string] (at least 3),
 "drawings": string}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

func reviewerPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	b.WriteString("Draft under review:\n")
	b.WriteString(draftText(task.PreviousResults))
	b.WriteString("\n\n")
	b.WriteString(`Review the draft and answer as JSON with the fields:
{"compliance": {"score": number 0-10, "findings": [string]},
 "technical_validity": {"score": number 0-10, "findings": [string]},
 "clarity": {"score": number 0-10, "findings": [string]},
 "overall_assessment": string, "recommendations": [string]}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

func rewriterPrompt(task Task) string {
	var b strings.Builder
	promptHeader(&b, task)
	b.WriteString("Current draft:\n")
	b.WriteString(draftText(task.PreviousResults))
	b.WriteString("\n\n")
	if review, ok := task.PreviousResults["review"]; ok {
		if data, err := canonicalJSON(review); err == nil {
			b.WriteString("Review findings (JSON):\n")
			b.Write(data)
			b.WriteString("\n\n")
		}
	}
	b.WriteString(`Produce the final revised draft as JSON with the fields:
{"title": string, "abstract": string, "background": string, "summary": string,
 "detailed_description": string, "claims": [string] (at least 3), "drawings": string,
 "revision_notes": [string]}
`)
	b.WriteString(jsonOnly)
	return b.String()
}

// descriptionPrompt 缺少描述时向模型索取 200-300 字的技术描述。
func descriptionPrompt(topic string) string {
	return fmt.Sprintf("Write a 200-300 character technical description of the invention topic %q. "+
		"Describe the technical problem, the core approach and the expected effect. "+
		"Answer with the description text only.", topic)
}

func sectionName(task Task) string {
	if task.Context == nil {
		return ""
	}
	s, _ := task.Context["section"].(string)
	return strings.TrimSpace(s)
}
