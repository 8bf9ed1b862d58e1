package agent

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/llm/tokenizer"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// Registry 维护 角色 → (真实执行器, 测试执行器) 的映射。
type Registry struct {
	mu   sync.RWMutex
	real map[Role]Executor
	test map[Role]Executor
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{
		real: make(map[Role]Executor),
		test: make(map[Role]Executor),
	}
}

// Register 注册一个角色。realExec 可以为 nil（没有可用的 LLM 客户端）。
func (r *Registry) Register(role Role, realExec, testExec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if realExec != nil {
		r.real[role] = realExec
	} else {
		delete(r.real, role)
	}
	if testExec != nil {
		r.test[role] = testExec
	}
}

// Lookup 按 testMode 选择执行器。
// 未知角色返回 INTERNAL；真实执行器缺失返回 UNAVAILABLE。
func (r *Registry) Lookup(role Role, testMode bool) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if testMode {
		if e, ok := r.test[role]; ok {
			return e, nil
		}
		return nil, types.Errorf(types.ErrInternal, "no executor registered for role %q", role)
	}
	if e, ok := r.real[role]; ok {
		return e, nil
	}
	if _, known := r.test[role]; known {
		return nil, types.Errorf(types.ErrUnavailable, "role %q has no real-mode executor: LLM client not configured", role)
	}
	return nil, types.Errorf(types.ErrInternal, "no executor registered for role %q", role)
}

// HasReal 真实模式是否可用。
func (r *Registry) HasReal(role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.real[role]
	return ok
}

// Roles 返回已注册角色（排序）。
func (r *Registry) Roles() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]Role, 0, len(r.test))
	for role := range r.test {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// RegistryOptions 默认注册表的构造参数。
type RegistryOptions struct {
	Temperature     float64
	TestDelay       time.Duration
	SummaryMaxBytes int
	Tokenizer       tokenizer.Tokenizer
	Logger          *zap.Logger
}

// NewDefaultRegistry 注册全部七个角色。gen 为 nil 时只有测试模式可用，
// 压缩执行器不依赖 LLM，两种模式都可用。
func NewDefaultRegistry(gen llm.Generator, opts RegistryOptions) *Registry {
	reg := NewRegistry()
	execOpts := Options{Temperature: opts.Temperature, Logger: opts.Logger}

	compressorOpts := []CompressorOption{
		WithSummaryMaxBytes(opts.SummaryMaxBytes),
		WithTokenizer(opts.Tokenizer),
		WithCompressorLogger(opts.Logger),
	}
	realCompressor := NewCompressor(compressorOpts...)
	testCompressor := NewCompressor(append(compressorOpts, asTestTwin(opts.TestDelay))...)
	reg.Register(RoleCompressor, realCompressor, testCompressor)

	builders := map[Role]func() Executor{
		RolePlanner:   func() Executor { return NewPlanner(gen, execOpts) },
		RoleSearcher:  func() Executor { return NewSearcher(gen, execOpts) },
		RoleDiscusser: func() Executor { return NewDiscusser(gen, execOpts) },
		RoleWriter:    func() Executor { return NewWriter(gen, execOpts) },
		RoleReviewer:  func() Executor { return NewReviewer(gen, execOpts) },
		RoleRewriter:  func() Executor { return NewRewriter(gen, execOpts) },
	}
	for role, build := range builders {
		testExec, _ := NewTestExecutor(role, opts.TestDelay)
		var realExec Executor
		if gen != nil {
			realExec = build()
		}
		reg.Register(role, realExec, testExec)
	}
	return reg
}
