package agent

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/llm"
)

// =============================================================================
// 🤖 真实模式执行器
// =============================================================================

// Options 真实模式执行器的公共参数。
type Options struct {
	// Temperature 传给 LLM 的温度，<=0 使用客户端默认值。
	Temperature float64
	Logger      *zap.Logger
}

// llmExecutor 封装"提示词 → 生成 → 结构化解析 → 降级"这一公共流程。
type llmExecutor struct {
	role        Role
	gen         llm.Generator
	temperature float64
	logger      *zap.Logger
}

func newLLMExecutor(role Role, gen llm.Generator, opts Options) llmExecutor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return llmExecutor{
		role:        role,
		gen:         gen,
		temperature: opts.Temperature,
		logger:      logger.With(zap.String("component", "agent"), zap.String("role", string(role))),
	}
}

func (e *llmExecutor) Role() Role { return e.role }

func (e *llmExecutor) Capabilities() []string { return CapabilitiesOf(e.role) }

// generate 调用 LLM。解析失败时 obj 为 nil、raw 为原文，不返回错误。
func (e *llmExecutor) generate(ctx context.Context, task Task, prompt string) (map[string]any, string, error) {
	raw, err := e.gen.Generate(ctx, prompt, SystemPrompt(e.role), e.temperature)
	if err != nil {
		e.logger.Warn("llm call failed",
			zap.String("workflow_id", task.WorkflowID),
			zap.String("stage", task.StageName),
			zap.Error(err))
		return nil, "", err
	}
	obj, derr := decodeObject(raw)
	if derr != nil {
		e.logger.Info("unstructured response, using defaults",
			zap.String("stage", task.StageName),
			zap.Int("raw_len", len(raw)),
			zap.Error(derr))
		return nil, raw, nil
	}
	return obj, raw, nil
}

func (e *llmExecutor) fail(task Task, err error) (Result, error) {
	res := NewResult(StatusFailed, task.StageName, e.role)
	res["error"] = err.Error()
	return res, err
}

func (e *llmExecutor) complete(task Task, key string, payload map[string]any, obj map[string]any, raw string) Result {
	res := NewResult(StatusCompleted, task.StageName, e.role)
	res[key] = payload
	if obj == nil {
		res["raw_response"] = raw
	}
	return res
}

// --- planner ---

// Planner 生成专利策略。
type Planner struct{ llmExecutor }

// NewPlanner 创建规划执行器。
func NewPlanner(gen llm.Generator, opts Options) *Planner {
	return &Planner{newLLMExecutor(RolePlanner, gen, opts)}
}

// Execute 实现 Executor。
func (p *Planner) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := p.generate(ctx, task, plannerPrompt(task))
	if err != nil {
		return p.fail(task, err)
	}
	return p.complete(task, "strategy", normalizeStrategy(task, unwrapPayload(obj, "strategy")), obj, raw), nil
}

func normalizeStrategy(task Task, obj map[string]any) map[string]any {
	areas := stringList(obj, "key_innovation_areas")
	if len(areas) == 0 {
		areas = []string{task.Topic}
	}
	return map[string]any{
		"topic":                    stringField(obj, "topic", task.Topic),
		"novelty_score":            round2(clamp(numberField(obj, "novelty_score", 5), 0, 10)),
		"inventive_step_score":     round2(clamp(numberField(obj, "inventive_step_score", 5), 0, 10)),
		"patentability_assessment": oneOf(stringField(obj, "patentability_assessment", ""), []string{"Weak", "Moderate", "Strong"}, "Moderate"),
		"key_innovation_areas":     areas,
		"competitive_analysis":     stringField(obj, "competitive_analysis", ""),
		"risk_assessment":          stringField(obj, "risk_assessment", ""),
		"timeline_estimate":        stringField(obj, "timeline_estimate", ""),
		"resource_requirements":    stringField(obj, "resource_requirements", ""),
		"success_probability":      round2(clamp(numberField(obj, "success_probability", 0.5), 0, 1)),
	}
}

// --- searcher ---

// Searcher 让模型列出相关现有技术。这不是真正的检索。
type Searcher struct{ llmExecutor }

// NewSearcher 创建检索执行器。
func NewSearcher(gen llm.Generator, opts Options) *Searcher {
	return &Searcher{newLLMExecutor(RoleSearcher, gen, opts)}
}

// Execute 实现 Executor。
func (s *Searcher) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := s.generate(ctx, task, searcherPrompt(task))
	if err != nil {
		return s.fail(task, err)
	}
	return s.complete(task, "search_results", normalizeSearch(unwrapPayload(obj, "search_results")), obj, raw), nil
}

func normalizeSearch(obj map[string]any) map[string]any {
	var patents []map[string]any
	if list, ok := obj["relevant_patents"].([]any); ok {
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			patents = append(patents, map[string]any{
				"id":        stringField(m, "id", "unknown-"+strconv.Itoa(i+1)),
				"title":     stringField(m, "title", ""),
				"relevance": round2(clamp(numberField(m, "relevance", 0), 0, 1)),
			})
		}
	}
	if patents == nil {
		patents = []map[string]any{}
	}
	recs := stringList(obj, "recommendations")
	if recs == nil {
		recs = []string{}
	}
	found := int(numberField(obj, "patents_found", float64(len(patents))))
	if found < len(patents) {
		found = len(patents)
	}
	return map[string]any{
		"summary":          stringField(obj, "summary", ""),
		"patents_found":    found,
		"relevant_patents": patents,
		"risk_assessment":  oneOf(stringField(obj, "risk_assessment", ""), []string{"Low", "Medium", "High"}, "Medium"),
		"recommendations":  recs,
	}
}

// --- discusser ---

// Discusser 提炼创新点与技术洞见。
type Discusser struct{ llmExecutor }

// NewDiscusser 创建讨论执行器。
func NewDiscusser(gen llm.Generator, opts Options) *Discusser {
	return &Discusser{newLLMExecutor(RoleDiscusser, gen, opts)}
}

// Execute 实现 Executor。
func (d *Discusser) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := d.generate(ctx, task, discusserPrompt(task))
	if err != nil {
		return d.fail(task, err)
	}
	return d.complete(task, "discussion", normalizeDiscussion(unwrapPayload(obj, "discussion")), obj, raw), nil
}

func normalizeDiscussion(obj map[string]any) map[string]any {
	innovations := stringList(obj, "innovations")
	if innovations == nil {
		innovations = []string{}
	}
	insights := stringList(obj, "technical_insights")
	if insights == nil {
		insights = stringList(obj, "key_insights")
	}
	if insights == nil {
		insights = []string{}
	}
	return map[string]any{
		"innovations":        innovations,
		"technical_insights": insights,
		"key_insights":       append([]string(nil), insights...),
	}
}

// --- writer ---

// Writer 撰写完整草稿；Context["section"] 非空时只撰写该章节。
type Writer struct{ llmExecutor }

// NewWriter 创建撰写执行器。
func NewWriter(gen llm.Generator, opts Options) *Writer {
	return &Writer{newLLMExecutor(RoleWriter, gen, opts)}
}

// Execute 实现 Executor。
func (w *Writer) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := w.generate(ctx, task, writerPrompt(task))
	if err != nil {
		return w.fail(task, err)
	}
	if section := sectionName(task); section != "" {
		content := stringField(unwrapPayload(obj, "section"), "content", "")
		if obj == nil {
			content = strings.TrimSpace(raw)
		}
		return w.complete(task, "section", normalizeSection(task.Topic, section, content), obj, raw), nil
	}
	return w.complete(task, "patent_draft", normalizeDraft(task.Topic, task.Description, unwrapPayload(obj, "patent_draft"), nil), obj, raw), nil
}

func normalizeSection(topic, name, content string) map[string]any {
	if name == "claims" {
		content = strings.Join(padClaims(splitClaims(content), topic), "\n")
	}
	return map[string]any{"name": name, "content": content}
}

// --- reviewer ---

// Reviewer 审查草稿。
type Reviewer struct{ llmExecutor }

// NewReviewer 创建审查执行器。
func NewReviewer(gen llm.Generator, opts Options) *Reviewer {
	return &Reviewer{newLLMExecutor(RoleReviewer, gen, opts)}
}

// Execute 实现 Executor。
func (r *Reviewer) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := r.generate(ctx, task, reviewerPrompt(task))
	if err != nil {
		return r.fail(task, err)
	}
	return r.complete(task, "review", normalizeReview(unwrapPayload(obj, "review")), obj, raw), nil
}

var reviewDimensions = []string{"compliance", "technical_validity", "clarity"}

func normalizeReview(obj map[string]any) map[string]any {
	review := map[string]any{}
	for _, dim := range reviewDimensions {
		section, _ := obj[dim].(map[string]any)
		findings := stringList(section, "findings")
		if findings == nil {
			findings = []string{}
		}
		review[dim] = map[string]any{
			"score":    round2(clamp(numberField(section, "score", 5), 0, 10)),
			"findings": findings,
		}
	}
	recs := stringList(obj, "recommendations")
	if recs == nil {
		recs = []string{}
	}
	review["overall_assessment"] = stringField(obj, "overall_assessment", "")
	review["recommendations"] = recs
	return review
}

// --- rewriter ---

// Rewriter 根据审查意见产出终稿。
type Rewriter struct{ llmExecutor }

// NewRewriter 创建改写执行器。
func NewRewriter(gen llm.Generator, opts Options) *Rewriter {
	return &Rewriter{newLLMExecutor(RoleRewriter, gen, opts)}
}

// Execute 实现 Executor。
func (r *Rewriter) Execute(ctx context.Context, task Task) (Result, error) {
	obj, raw, err := r.generate(ctx, task, rewriterPrompt(task))
	if err != nil {
		return r.fail(task, err)
	}
	payload := unwrapPayload(obj, "final_draft")
	final := normalizeDraft(task.Topic, task.Description, payload, draftFromPrevious(task.PreviousResults))
	notes := stringList(payload, "revision_notes")
	if notes == nil {
		notes = stringList(obj, "revision_notes")
	}
	if notes == nil {
		notes = []string{}
	}
	final["revision_notes"] = notes
	return r.complete(task, "final_draft", final, obj, raw), nil
}
