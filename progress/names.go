package progress

import "path"

// 固定的产物文件名
const (
	TitleAbstract  = "00_title_abstract.md"
	Outline        = "01_outline.md"
	Background     = "02_background.md"
	Invention      = "03_invention.md"
	Implementation = "04_implementation.md"
	Claims         = "05_claims.md"
	Drawings       = "06_drawings.md"
	Review         = "07_review.md"
	Final          = "08_final.md"
)

// NumberedArtifacts 按顺序列出编号产物。
var NumberedArtifacts = []string{
	TitleAbstract, Outline, Background, Invention, Implementation, Claims, Drawings, Review, Final,
}

// ContextArtifact 返回非编号阶段（检索、讨论、压缩）的上下文产物名。
func ContextArtifact(stage string) string {
	return path.Join("context", stage+".md")
}
