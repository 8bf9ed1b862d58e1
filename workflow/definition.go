package workflow

import (
	"strings"

	"github.com/valkryhx/patent-agents-sub002/agent"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// Type 工作流类型。
type Type string

const (
	// TypeEnhanced 单次撰写整份草稿。
	TypeEnhanced Type = "enhanced"
	// TypeSectioned 逐节撰写，每节对应一个编号产物。
	TypeSectioned Type = "sectioned"
)

// PatentTypes 属于专利流水线的类型，/patents 只列出这些。
// 目前两种类型都是专利流水线，/patents 与 /workflows 结果相同；
// 以后新增的非专利类型（如单独的检索流程）不会出现在 /patents。
var PatentTypes = []Type{TypeEnhanced, TypeSectioned}

// ParseType 解析工作流类型。
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeEnhanced, TypeSectioned:
		return t, nil
	}
	return "", types.Errorf(types.ErrValidation, "unknown workflow_type %q", s)
}

// StageDef 阶段定义。名称是外部契约，产物文件名依赖它。
type StageDef struct {
	Name      string
	Role      agent.Role
	Artifacts []string
	// Context 随任务下发的阶段提示（section、preserve 等）。
	Context map[string]any
	// FullContext 为 true 时阶段拿到未压缩的全部结果。
	FullContext bool
}

// Definition 一种工作流类型的有序阶段列表。
type Definition struct {
	Type   Type
	Stages []StageDef
}

// StageNames 按顺序返回阶段名。
func (d Definition) StageNames() []string {
	names := make([]string, len(d.Stages))
	for i, s := range d.Stages {
		names[i] = s.Name
	}
	return names
}

// ArtifactNames 返回全部阶段声明的产物。
func (d Definition) ArtifactNames() []string {
	var out []string
	for _, s := range d.Stages {
		out = append(out, s.Artifacts...)
	}
	return out
}

func compressionStage(name string) StageDef {
	return StageDef{
		Name:      name,
		Role:      agent.RoleCompressor,
		Artifacts: []string{progress.ContextArtifact(name)},
		Context:   map[string]any{"preserve": append([]string(nil), agent.DefaultPreserve...)},
	}
}

func sectionStage(section, artifact string) StageDef {
	return StageDef{
		Name:      section,
		Role:      agent.RoleWriter,
		Artifacts: []string{artifact},
		Context:   map[string]any{"section": section},
	}
}

// DefinitionFor 返回类型对应的阶段定义（每次返回新副本）。
func DefinitionFor(t Type) (Definition, error) {
	head := []StageDef{
		{Name: "planning", Role: agent.RolePlanner, Artifacts: []string{progress.TitleAbstract}},
		{Name: "search", Role: agent.RoleSearcher, Artifacts: []string{progress.ContextArtifact("search")}},
		{Name: "discussion", Role: agent.RoleDiscusser, Artifacts: []string{progress.ContextArtifact("discussion")}},
		compressionStage("compression_before_drafting"),
	}
	tail := []StageDef{
		{Name: "review", Role: agent.RoleReviewer, Artifacts: []string{progress.Review}, FullContext: true},
		{Name: "rewrite", Role: agent.RoleRewriter, Artifacts: []string{progress.Final}, FullContext: true},
	}

	switch t {
	case TypeEnhanced:
		drafting := StageDef{
			Name: "drafting",
			Role: agent.RoleWriter,
			Artifacts: []string{
				progress.Outline, progress.Background, progress.Invention,
				progress.Implementation, progress.Claims, progress.Drawings,
			},
		}
		stages := append(head, drafting)
		return Definition{Type: t, Stages: append(stages, tail...)}, nil

	case TypeSectioned:
		stages := append(head,
			sectionStage("outline", progress.Outline),
			sectionStage("background", progress.Background),
			sectionStage("invention", progress.Invention),
			sectionStage("implementation", progress.Implementation),
			compressionStage("compression_before_claims"),
			sectionStage("claims", progress.Claims),
			sectionStage("drawings", progress.Drawings),
		)
		return Definition{Type: t, Stages: append(stages, tail...)}, nil
	}
	return Definition{}, types.Errorf(types.ErrValidation, "unknown workflow_type %q", t)
}
