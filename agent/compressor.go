package agent

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/llm/tokenizer"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 🗜️ 上下文压缩
// =============================================================================

// DefaultPreserve 压缩时原样保留的键。
var DefaultPreserve = []string{"core_strategy", "key_insights", "critical_findings"}

// DefaultSummaryMaxBytes 摘要截取的字节数。
const DefaultSummaryMaxBytes = 200

const (
	compressedPrefix = "[compressed] "
	compressedSuffix = "…"
)

// CompressionSummary 压缩前后的体积统计。
type CompressionSummary struct {
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
}

// Map 以 JSON 形状返回统计，放进 Result。
func (s CompressionSummary) Map() map[string]any {
	return map[string]any{
		"original_size":     s.OriginalSize,
		"compressed_size":   s.CompressedSize,
		"compression_ratio": s.CompressionRatio,
		"original_tokens":   s.OriginalTokens,
		"compressed_tokens": s.CompressedTokens,
	}
}

// Compressor 确定性的压缩执行器，不调用 LLM，真实模式与测试模式共用。
type Compressor struct {
	maxBytes int
	preserve []string
	tok      tokenizer.Tokenizer
	testMode bool
	delay    time.Duration
	logger   *zap.Logger
}

// CompressorOption configures the Compressor.
type CompressorOption func(*Compressor)

// WithSummaryMaxBytes 设置摘要字节上限。
func WithSummaryMaxBytes(n int) CompressorOption {
	return func(c *Compressor) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithPreserve 覆盖默认白名单。
func WithPreserve(keys ...string) CompressorOption {
	return func(c *Compressor) { c.preserve = append([]string(nil), keys...) }
}

// WithTokenizer 设置统计 token 用的分词器。
func WithTokenizer(t tokenizer.Tokenizer) CompressorOption {
	return func(c *Compressor) {
		if t != nil {
			c.tok = t
		}
	}
}

// WithCompressorLogger sets the logger.
func WithCompressorLogger(logger *zap.Logger) CompressorOption {
	return func(c *Compressor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// asTestTwin 标记为测试模式实例，并附加固定延迟。
func asTestTwin(delay time.Duration) CompressorOption {
	return func(c *Compressor) {
		c.testMode = true
		c.delay = delay
	}
}

// NewCompressor 创建压缩执行器。
func NewCompressor(opts ...CompressorOption) *Compressor {
	c := &Compressor{
		maxBytes: DefaultSummaryMaxBytes,
		preserve: append([]string(nil), DefaultPreserve...),
		tok:      tokenizer.NewEstimatorTokenizer(""),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "agent"), zap.String("role", string(RoleCompressor)))
	return c
}

// Role 实现 Executor。
func (c *Compressor) Role() Role { return RoleCompressor }

// Capabilities 实现 Executor。
func (c *Compressor) Capabilities() []string { return CapabilitiesOf(RoleCompressor) }

// Execute 压缩 task.PreviousResults。Context["preserve"] 可覆盖白名单。
func (c *Compressor) Execute(ctx context.Context, task Task) (Result, error) {
	if c.testMode {
		if err := sleepContext(ctx, c.delay+taskDelay(task)); err != nil {
			return cancelledResult(task, RoleCompressor, err)
		}
	} else if err := ctx.Err(); err != nil {
		return cancelledResult(task, RoleCompressor, err)
	}

	preserve := c.preserve
	if keys := stringList(task.Context, "preserve"); keys != nil {
		preserve = keys
	}

	compressed, preserved, summary, err := c.Compress(task.PreviousResults, preserve)
	if err != nil {
		res := NewResult(StatusFailed, task.StageName, RoleCompressor)
		res["error"] = err.Error()
		return res, err
	}

	c.logger.Debug("context compressed",
		zap.String("workflow_id", task.WorkflowID),
		zap.String("stage", task.StageName),
		zap.Int("original_size", summary.OriginalSize),
		zap.Int("compressed_size", summary.CompressedSize),
		zap.Float64("ratio", summary.CompressionRatio))

	res := NewResult(StatusCompleted, task.StageName, RoleCompressor)
	res["compressed_context"] = compressed
	res["preserved_elements"] = preserved
	res["compression_summary"] = summary.Map()
	if c.testMode {
		res["test_mode"] = true
		res["message"] = "test mode: deterministic compression"
	}
	return res, nil
}

// Compress 返回新的 map：白名单键原样保留，其余值替换为摘要字符串。
// 已是摘要的值不再改动，因此重复压缩得到相同结果且压缩率为 0。
func (c *Compressor) Compress(prev map[string]any, preserve []string) (map[string]any, []string, CompressionSummary, error) {
	keep := make(map[string]bool, len(preserve))
	for _, k := range preserve {
		keep[k] = true
	}

	out := make(map[string]any, len(prev))
	preserved := []string{}
	for k, v := range prev {
		if keep[k] {
			out[k] = cloneValue(v)
			preserved = append(preserved, k)
			continue
		}
		s, err := c.summarize(v)
		if err != nil {
			return nil, nil, CompressionSummary{}, types.Errorf(types.ErrInternal, "cannot encode %q for compression", k).WithCause(err)
		}
		out[k] = s
	}
	sort.Strings(preserved)

	before, err := canonicalJSON(nonNil(prev))
	if err != nil {
		return nil, nil, CompressionSummary{}, types.NewError(types.ErrInternal, "cannot encode previous results").WithCause(err)
	}
	after, err := canonicalJSON(out)
	if err != nil {
		return nil, nil, CompressionSummary{}, types.NewError(types.ErrInternal, "cannot encode compressed context").WithCause(err)
	}

	summary := CompressionSummary{
		OriginalSize:     len(before),
		CompressedSize:   len(after),
		OriginalTokens:   c.countTokens(string(before)),
		CompressedTokens: c.countTokens(string(after)),
	}
	if summary.OriginalSize > 0 {
		summary.CompressionRatio = round2(100 * (1 - float64(summary.CompressedSize)/float64(summary.OriginalSize)))
	}
	return out, preserved, summary, nil
}

// summarize 把值变成 "[compressed] <前 N 字节>…"。摘要不比原值小时保留原值。
func (c *Compressor) summarize(v any) (any, error) {
	if s, ok := v.(string); ok && strings.HasPrefix(s, compressedPrefix) {
		return v, nil
	}
	data, err := canonicalJSON(v)
	if err != nil {
		return nil, err
	}
	collapsed := strings.Join(strings.Fields(string(data)), " ")
	if len(collapsed) <= c.maxBytes {
		return cloneValue(v), nil
	}
	summary := compressedPrefix + truncateBytes(collapsed, c.maxBytes) + compressedSuffix
	encoded, err := canonicalJSON(summary)
	if err != nil {
		return nil, err
	}
	if len(encoded) >= len(data) {
		return cloneValue(v), nil
	}
	return summary, nil
}

func (c *Compressor) countTokens(text string) int {
	n, err := c.tok.CountTokens(text)
	if err != nil {
		c.logger.Debug("token count failed", zap.String("tokenizer", c.tok.Name()), zap.Error(err))
		return 0
	}
	return n
}

// truncateBytes 按字节截断，不切开多字节字符。
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// IsCompressedSummary 值是否为压缩产生的摘要字符串。
func IsCompressedSummary(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, compressedPrefix)
}

// =============================================================================
// 🔑 白名单键的派生
// =============================================================================

// WithDerivedKeys 在压缩前补上白名单键：core_strategy 取规划策略，
// key_insights 取讨论洞见，critical_findings 取检索风险与建议。
// 已存在的键不覆盖。返回新的 map。
func WithDerivedKeys(prev map[string]any) map[string]any {
	out := CloneMap(nonNil(prev))

	keys := make([]string, 0, len(prev))
	for k := range prev {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		r, ok := asMap(prev[k])
		if !ok {
			continue
		}
		switch Role(stringField(r, "executor", "")) {
		case RolePlanner:
			if _, exists := out["core_strategy"]; !exists {
				if s, ok := r["strategy"].(map[string]any); ok {
					out["core_strategy"] = CloneMap(s)
				}
			}
		case RoleDiscusser:
			if _, exists := out["key_insights"]; !exists {
				if d, ok := r["discussion"].(map[string]any); ok {
					insights := stringList(d, "key_insights")
					if insights == nil {
						insights = stringList(d, "technical_insights")
					}
					if insights != nil {
						out["key_insights"] = insights
					}
				}
			}
		case RoleSearcher:
			if _, exists := out["critical_findings"]; !exists {
				if s, ok := r["search_results"].(map[string]any); ok {
					recs := stringList(s, "recommendations")
					if recs == nil {
						recs = []string{}
					}
					out["critical_findings"] = map[string]any{
						"risk_assessment": stringField(s, "risk_assessment", ""),
						"recommendations": recs,
					}
				}
			}
		}
	}
	return out
}
