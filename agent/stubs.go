package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 🧪 测试模式执行器
// =============================================================================
// 测试模式下每个角色返回确定的固定内容，不访问 LLM。
// 同样的输入总是得到字节级相同的输出。

type stubExecutor struct {
	role  Role
	delay time.Duration
	build func(task Task) map[string]any
}

// NewTestExecutor 返回角色的测试模式执行器。delay 为每次执行的固定延迟。
func NewTestExecutor(role Role, delay time.Duration) (Executor, error) {
	var build func(Task) map[string]any
	switch role {
	case RolePlanner:
		build = stubStrategy
	case RoleSearcher:
		build = stubSearch
	case RoleDiscusser:
		build = stubDiscussion
	case RoleWriter:
		build = stubWriter
	case RoleReviewer:
		build = stubReview
	case RoleRewriter:
		build = stubRewrite
	case RoleCompressor:
		return NewCompressor(asTestTwin(delay)), nil
	default:
		return nil, types.Errorf(types.ErrInternal, "no test executor for role %q", role)
	}
	return &stubExecutor{role: role, delay: delay, build: build}, nil
}

func (s *stubExecutor) Role() Role { return s.role }

func (s *stubExecutor) Capabilities() []string { return CapabilitiesOf(s.role) }

func (s *stubExecutor) Execute(ctx context.Context, task Task) (Result, error) {
	if err := sleepContext(ctx, s.delay+taskDelay(task)); err != nil {
		return cancelledResult(task, s.role, err)
	}
	res := NewResult(StatusCompleted, task.StageName, s.role)
	for k, v := range s.build(task) {
		res[k] = v
	}
	res["test_mode"] = true
	res["message"] = fmt.Sprintf("test mode: canned %s output", s.role)
	return res, nil
}

// taskDelay 读取 Context["delay_ms"]。
func taskDelay(task Task) time.Duration {
	ms := numberField(task.Context, "delay_ms", 0)
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cancelledResult(task Task, role Role, cause error) (Result, error) {
	err := types.NewError(types.ErrCancelled, "stage execution interrupted").WithCause(cause)
	res := NewResult(StatusFailed, task.StageName, role)
	res["error"] = err.Error()
	return res, err
}

// --- 固定内容 ---

func stubStrategy(task Task) map[string]any {
	return map[string]any{"strategy": map[string]any{
		"topic":                    task.Topic,
		"novelty_score":            8.5,
		"inventive_step_score":     7.8,
		"patentability_assessment": "Strong",
		"key_innovation_areas": []string{
			task.Topic + " core architecture",
			"data processing pipeline",
			"system integration and deployment",
		},
		"competitive_analysis":  fmt.Sprintf("Few granted patents address %s directly; competitors focus on adjacent techniques.", task.Topic),
		"risk_assessment":       "Moderate risk from general-purpose prior art.",
		"timeline_estimate":     "18-24 months to grant",
		"resource_requirements": "1 patent attorney, 2 domain engineers",
		"success_probability":   0.75,
	}}
}

func stubSearch(task Task) map[string]any {
	return map[string]any{"search_results": map[string]any{
		"summary":       fmt.Sprintf("Three documents partially overlap with %s; none discloses the full combination.", task.Topic),
		"patents_found": 3,
		"relevant_patents": []map[string]any{
			{"id": "CN100000001A", "title": task.Topic + " related method", "relevance": 0.82},
			{"id": "US10000002B1", "title": "System for adaptive processing", "relevance": 0.67},
			{"id": "EP1000003A1", "title": "Apparatus and control method", "relevance": 0.45},
		},
		"risk_assessment": "Medium",
		"recommendations": []string{
			"Emphasise the combined processing flow in the independent claim",
			"Add dependent claims covering parameter ranges",
		},
	}}
}

func stubDiscussion(task Task) map[string]any {
	insights := []string{
		"The processing flow can be split into independently claimable steps",
		"Parameter adaptation is the main technical effect",
	}
	return map[string]any{"discussion": map[string]any{
		"innovations": []string{
			task.Topic + " with adaptive control loop",
			"Layered data model reducing computation cost",
		},
		"technical_insights": insights,
		"key_insights":       append([]string(nil), insights...),
	}}
}

func stubDraft(task Task) map[string]any {
	return map[string]any{
		"title":                task.Topic,
		"abstract":             truncateRunes(fmt.Sprintf("The invention discloses %s. %s", task.Topic, task.Description), abstractGuideLen),
		"background":           fmt.Sprintf("Existing approaches to %s suffer from high cost and low adaptability.", task.Topic),
		"summary":              fmt.Sprintf("The invention provides %s that adapts its processing parameters automatically.", task.Topic),
		"detailed_description": fmt.Sprintf("In one embodiment, %s comprises an acquisition module, a processing module and a control module. %s", task.Topic, task.Description),
		"claims":               padClaims(nil, task.Topic),
		"drawings":             "FIG. 1 is a system block diagram; FIG. 2 is a flow chart of the method.",
	}
}

func stubSectionContent(task Task, section string) string {
	switch section {
	case "outline":
		return strings.Join([]string{"1. Technical field", "2. Background", "3. Summary", "4. Detailed description", "5. Claims", "6. Drawings"}, "\n")
	case "claims":
		return strings.Join(padClaims(nil, task.Topic), "\n")
	}
	d := stubDraft(task)
	if field, ok := sectionFields[section]; ok {
		if s, ok := d[field].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%s section for %s.", section, task.Topic)
}

func stubWriter(task Task) map[string]any {
	if section := sectionName(task); section != "" {
		return map[string]any{"section": map[string]any{
			"name":    section,
			"content": stubSectionContent(task, section),
		}}
	}
	return map[string]any{"patent_draft": stubDraft(task)}
}

func stubReview(task Task) map[string]any {
	dim := func(score float64, finding string) map[string]any {
		return map[string]any{"score": score, "findings": []string{finding}}
	}
	return map[string]any{"review": map[string]any{
		"compliance":         dim(8, "Claims follow the required two-part form"),
		"technical_validity": dim(7.5, "Embodiment supports the independent claim"),
		"clarity":            dim(8, "Terminology is consistent across sections"),
		"overall_assessment": "The draft is ready for final revision.",
		"recommendations":    []string{"Clarify the parameter ranges in claim 2"},
	}}
}

func stubRewrite(task Task) map[string]any {
	prev := draftFromPrevious(task.PreviousResults)
	if len(prev) == 0 {
		prev = stubDraft(task)
	}
	final := normalizeDraft(task.Topic, task.Description, nil, prev)
	final["revision_notes"] = []string{"Addressed review recommendations", "Harmonised terminology"}
	return map[string]any{"final_draft": final}
}
