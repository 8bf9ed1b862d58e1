package agent

import (
	"context"
	"strings"

	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 🎭 角色
// =============================================================================

// Role 执行器角色名，同时也是 /agents/{role} 路由的路径段。
type Role string

const (
	RolePlanner    Role = "planner"
	RoleSearcher   Role = "searcher"
	RoleDiscusser  Role = "discusser"
	RoleCompressor Role = "compressor"
	RoleWriter     Role = "writer"
	RoleReviewer   Role = "reviewer"
	RoleRewriter   Role = "rewriter"
)

// AllRoles 按流水线顺序列出全部角色。
var AllRoles = []Role{
	RolePlanner, RoleSearcher, RoleDiscusser, RoleCompressor, RoleWriter, RoleReviewer, RoleRewriter,
}

// ParseRole 把字符串解析为已知角色。
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", types.Errorf(types.ErrNotFound, "unknown agent role %q", s)
}

// =============================================================================
// 📋 任务与结果
// =============================================================================

// Task 一次阶段执行的输入。PreviousResults 是调用方给出的快照，
// 执行器只读不写。
type Task struct {
	TaskID          string         `json:"task_id"`
	WorkflowID      string         `json:"workflow_id"`
	StageName       string         `json:"stage_name"`
	Topic           string         `json:"topic"`
	Description     string         `json:"description"`
	PreviousResults map[string]any `json:"previous_results"`
	Context         map[string]any `json:"context"`
}

// Validate 检查直接调用 /agents/{role}/execute 时的必填字段。
func (t Task) Validate() error {
	if strings.TrimSpace(t.Topic) == "" {
		return types.NewError(types.ErrValidation, "topic is required")
	}
	return nil
}

// 结果状态
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result 阶段结果：status、stage、executor 加上角色相关的负载。
type Result map[string]any

// NewResult 创建带公共字段的结果。
func NewResult(status, stage string, role Role) Result {
	return Result{
		"status":   status,
		"stage":    stage,
		"executor": string(role),
	}
}

// Status 返回结果状态。
func (r Result) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Failed 结果是否为失败。
func (r Result) Failed() bool { return r.Status() == StatusFailed }

// Error 返回失败结果上的错误信息。
func (r Result) Error() string {
	s, _ := r["error"].(string)
	return s
}

// Clone 深拷贝结果，调用方可以自由修改副本。
func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	return Result(CloneMap(r))
}

// =============================================================================
// ⚙️ 执行器
// =============================================================================

// Executor 是所有阶段共享的执行契约。
//
// 失败时同时返回 status=failed 的结果和非空 error，
// 管理器据此把阶段标记为 failed。
type Executor interface {
	Execute(ctx context.Context, task Task) (Result, error)
	Role() Role
	Capabilities() []string
}

var roleCapabilities = map[Role][]string{
	RolePlanner:    {"patent_strategy", "novelty_scoring", "risk_assessment"},
	RoleSearcher:   {"prior_art_search", "risk_rating", "recommendations"},
	RoleDiscusser:  {"technical_insights", "innovation_points"},
	RoleCompressor: {"context_compression", "size_accounting"},
	RoleWriter:     {"patent_drafting", "section_drafting", "claims_drafting"},
	RoleReviewer:   {"compliance_review", "technical_validity_review", "clarity_review"},
	RoleRewriter:   {"final_revision", "claims_polishing"},
}

// CapabilitiesOf 返回角色的能力列表副本。
func CapabilitiesOf(role Role) []string {
	caps := roleCapabilities[role]
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}

// =============================================================================
// 🧬 深拷贝
// =============================================================================

// CloneMap 深拷贝 JSON 形状的 map。
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case Result:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = CloneMap(item)
		}
		return out
	default:
		return v
	}
}
