package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/valkryhx/patent-agents-sub002/agent"
	"github.com/valkryhx/patent-agents-sub002/internal/ctxkeys"
	"github.com/valkryhx/patent-agents-sub002/llm"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/types"
)

// =============================================================================
// 🎯 工作流管理器
// =============================================================================

// Metrics 管理器上报的指标，由 internal/metrics.Collector 实现。
type Metrics interface {
	RecordStageExecution(stage, role, status string, duration time.Duration)
	RecordCompression(stage string, ratio float64)
	RecordArtifact(stage string)
	RecordWorkflowStarted(workflowType string, testMode bool)
	RecordWorkflowFinished(workflowType, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordStageExecution(string, string, string, time.Duration) {}
func (noopMetrics) RecordCompression(string, float64)                         {}
func (noopMetrics) RecordArtifact(string)                                     {}
func (noopMetrics) RecordWorkflowStarted(string, bool)                        {}
func (noopMetrics) RecordWorkflowFinished(string, string)                     {}

// StartRequest 启动工作流的请求。
type StartRequest struct {
	Topic        string `json:"topic"`
	Description  string `json:"description,omitempty"`
	WorkflowType string `json:"workflow_type,omitempty"`
	// TestMode 为 nil 时使用管理器默认值。
	TestMode *bool `json:"test_mode,omitempty"`
	// Context 合并进每个阶段的任务上下文（如 delay_ms）。
	Context map[string]any `json:"context,omitempty"`
}

// Results 已完成阶段的结果。
type Results struct {
	WorkflowID string                  `json:"workflow_id"`
	Status     Status                  `json:"status"`
	Results    map[string]agent.Result `json:"results"`
}

type record struct {
	wf      *Workflow
	def     Definition
	results map[string]agent.Result
	done    chan struct{}
	// queued 在等待并发槽位期间有效，pending 时取消会立即结束等待。
	queued      context.Context
	stopWaiting context.CancelFunc
}

// Manager 驱动工作流：每个工作流一个 goroutine，阶段严格按顺序执行。
// 读接口只在锁内复制快照，不会被阶段执行阻塞。
type Manager struct {
	mu        sync.RWMutex
	records   map[string]*record
	order     []string
	closed    bool
	registry  *agent.Registry
	store     *progress.FileStore
	gen       llm.Generator
	sem       *semaphore.Weighted
	bus       *EventBus
	metrics   Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	defType   Type
	defTest   bool
	newID     func() string
	now       func() time.Time
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithGenerator 设置真实模式下生成描述用的 LLM。
func WithGenerator(gen llm.Generator) Option {
	return func(m *Manager) { m.gen = gen }
}

// WithMetrics 设置指标上报。
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithTracer 设置 tracer，默认使用全局 TracerProvider。
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMaxConcurrent 同时运行的工作流上限。
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithDefaultType 请求未指定类型时使用。
func WithDefaultType(t Type) Option {
	return func(m *Manager) {
		if t != "" {
			m.defType = t
		}
	}
}

// WithDefaultTestMode 请求未指定 test_mode 时使用。
func WithDefaultTestMode(testMode bool) Option {
	return func(m *Manager) { m.defTest = testMode }
}

// WithEventBus 共享外部事件总线。
func WithEventBus(bus *EventBus) Option {
	return func(m *Manager) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// NewManager 创建管理器。
func NewManager(registry *agent.Registry, store *progress.FileStore, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		records:   make(map[string]*record),
		registry:  registry,
		store:     store,
		sem:       semaphore.NewWeighted(8),
		bus:       NewEventBus(),
		metrics:   noopMetrics{},
		tracer:    otel.Tracer("patent-agents/workflow"),
		logger:    zap.NewNop(),
		defType:   TypeEnhanced,
		defTest:   true,
		newID:     uuid.NewString,
		now:       time.Now,
		baseCtx:   ctx,
		cancelAll: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "workflow_manager"))
	return m
}

// Events 返回事件总线。
func (m *Manager) Events() *EventBus { return m.bus }

// Registry 返回执行器注册表。
func (m *Manager) Registry() *agent.Registry { return m.registry }

// =============================================================================
// 🚀 启动
// =============================================================================

// Start 校验请求、创建记录并在后台开始执行，立即返回快照。
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Workflow, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, types.NewError(types.ErrValidation, "topic is required")
	}

	wfType := m.defType
	if strings.TrimSpace(req.WorkflowType) != "" {
		t, err := ParseType(req.WorkflowType)
		if err != nil {
			return nil, err
		}
		wfType = t
	}
	def, err := DefinitionFor(wfType)
	if err != nil {
		return nil, err
	}

	testMode := m.defTest
	if req.TestMode != nil {
		testMode = *req.TestMode
	}
	if !testMode && !m.registry.HasReal(agent.RolePlanner) {
		return nil, types.NewError(types.ErrUnavailable, "real mode requires a configured LLM client")
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		if testMode {
			description = agent.PlaceholderDescription(topic)
		} else {
			description, err = agent.GenerateDescription(ctx, m.gen, topic)
			if err != nil {
				return nil, asServiceError(err, "failed to generate description")
			}
		}
	}

	now := m.now()
	id := m.newID()
	wf := &Workflow{
		ID:          id,
		Topic:       topic,
		Description: description,
		Type:        wfType,
		TestMode:    testMode,
		Status:      StatusPending,
		Stages:      make([]Stage, len(def.Stages)),
		ProgressDir: m.store.Dir(id),
		CreatedAt:   now,
		stageCtx:    agent.CloneMap(req.Context),
	}
	for i, sd := range def.Stages {
		wf.Stages[i] = Stage{Name: sd.Name, Role: string(sd.Role), Status: StagePending}
	}
	wf.recompute(now)

	queued, stopWaiting := context.WithCancel(m.baseCtx)
	rec := &record{
		wf:          wf,
		def:         def,
		results:     make(map[string]agent.Result),
		done:        make(chan struct{}),
		queued:      queued,
		stopWaiting: stopWaiting,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stopWaiting()
		return nil, types.NewError(types.ErrUnavailable, "workflow manager is shutting down")
	}
	m.records[id] = rec
	m.order = append(m.order, id)
	m.wg.Add(1)
	snap := wf.clone()
	m.mu.Unlock()

	m.metrics.RecordWorkflowStarted(string(wfType), testMode)
	m.logger.Info("workflow created",
		zap.String("workflow_id", id),
		zap.String("topic", topic),
		zap.String("workflow_type", string(wfType)),
		zap.Bool("test_mode", testMode),
		zap.Int("total_stages", len(def.Stages)))
	m.publish(EventWorkflowCreated, snap, "", "", "")

	go m.run(rec)
	return snap, nil
}

// =============================================================================
// 🏃 执行
// =============================================================================

func (m *Manager) run(rec *record) {
	defer m.wg.Done()
	defer close(rec.done)
	defer rec.stopWaiting()

	id := rec.wf.ID
	if err := m.sem.Acquire(rec.queued, 1); err != nil {
		m.abortPending(rec, "service shutting down before the workflow started")
		return
	}
	defer m.sem.Release(1)

	ctx, span := m.tracer.Start(ctxkeys.WithWorkflowID(m.baseCtx, id), "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", id),
		attribute.String("workflow.type", string(rec.def.Type)),
		attribute.Bool("workflow.test_mode", rec.wf.TestMode),
	))
	defer span.End()

	if !m.markRunning(rec) {
		span.SetAttributes(attribute.String("workflow.status", string(StatusCancelled)))
		return
	}

	working := map[string]any{}
	for i, sd := range rec.def.Stages {
		if m.cancelAtBoundary(rec) {
			span.SetAttributes(attribute.String("workflow.status", string(StatusCancelled)))
			return
		}

		res, err := m.runStage(ctx, rec, i, sd, working)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}

		if sd.Role == agent.RoleCompressor {
			if compressed, ok := res["compressed_context"].(map[string]any); ok {
				working = agent.CloneMap(compressed)
			}
			continue
		}
		working[sd.Name] = res.Clone()
	}

	m.finish(rec, StatusCompleted, "")
	span.SetAttributes(attribute.String("workflow.status", string(StatusCompleted)))
}

// runStage 执行一个阶段：先写产物，再把结果标记为可读。
func (m *Manager) runStage(ctx context.Context, rec *record, index int, sd StageDef, working map[string]any) (agent.Result, error) {
	task, testMode := m.beginStage(rec, index, sd, working)

	ctx, span := m.tracer.Start(ctxkeys.WithStage(ctx, sd.Name), "workflow.stage", trace.WithAttributes(
		attribute.String("workflow.id", rec.wf.ID),
		attribute.String("stage.name", sd.Name),
		attribute.String("stage.role", string(sd.Role)),
	))
	defer span.End()

	start := m.now()
	exec, err := m.registry.Lookup(sd.Role, testMode)
	if err != nil {
		m.failStage(rec, index, sd, types.WrapError(err, "executor lookup failed"), m.now().Sub(start))
		return nil, err
	}

	res, err := exec.Execute(ctx, task)
	if err == nil && res.Failed() {
		err = types.Errorf(types.ErrStageLogic, "stage %s reported failure: %s", sd.Name, res.Error())
	}
	if err == nil && res == nil {
		err = types.Errorf(types.ErrInternal, "stage %s returned no result", sd.Name)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.failStage(rec, index, sd, err, m.now().Sub(start))
		return nil, err
	}

	snap := m.snapshot(rec)
	contents, err := renderArtifacts(sd, snap, res)
	if err == nil {
		err = m.writeArtifacts(ctx, rec, sd, contents)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.failStage(rec, index, sd, err, m.now().Sub(start))
		return nil, err
	}

	if sd.Role == agent.RoleCompressor {
		if summary, ok := res["compression_summary"].(map[string]any); ok {
			if ratio, ok := summary["compression_ratio"].(float64); ok {
				m.metrics.RecordCompression(sd.Name, ratio)
			}
		}
	}

	m.completeStage(rec, index, sd, res, m.now().Sub(start))
	return res, nil
}

// beginStage 把阶段置为 running 并构造任务。
func (m *Manager) beginStage(rec *record, index int, sd StageDef, working map[string]any) (agent.Task, bool) {
	now := m.now()

	m.mu.Lock()
	wf := rec.wf
	st := &wf.Stages[index]
	m.transitionStage(wf, st, StageRunning)
	st.StartedAt = &now
	wf.recompute(now)

	prev := working
	if sd.FullContext {
		prev = make(map[string]any, len(rec.results))
		for k, v := range rec.results {
			prev[k] = v
		}
	}
	if sd.Role == agent.RoleCompressor || sd.FullContext {
		prev = agent.WithDerivedKeys(prev)
	} else {
		prev = agent.CloneMap(prev)
	}

	taskCtx := agent.CloneMap(wf.stageCtx)
	if taskCtx == nil {
		taskCtx = map[string]any{}
	}
	for k, v := range agent.CloneMap(sd.Context) {
		taskCtx[k] = v
	}
	taskCtx["workflow_type"] = string(wf.Type)

	task := agent.Task{
		TaskID:          m.newID(),
		WorkflowID:      wf.ID,
		StageName:       sd.Name,
		Topic:           wf.Topic,
		Description:     wf.Description,
		PreviousResults: prev,
		Context:         taskCtx,
	}
	testMode := wf.TestMode
	snap := wf.clone()
	m.mu.Unlock()

	m.logger.Info("stage started",
		zap.String("workflow_id", wf.ID),
		zap.String("stage", sd.Name),
		zap.String("role", string(sd.Role)),
		zap.Int("index", index))
	m.publish(EventStageStarted, snap, sd.Name, "", "")
	return task, testMode
}

// writeArtifacts 写入阶段的全部产物。任一写入失败时删除本阶段已写的文件，
// 失败阶段不留下部分产物。
func (m *Manager) writeArtifacts(ctx context.Context, rec *record, sd StageDef, contents map[string]string) error {
	written := make([]*progress.Artifact, 0, len(sd.Artifacts))
	for _, name := range sd.Artifacts {
		a, err := m.store.Write(ctx, rec.wf.ID, name, contents[name])
		if err != nil {
			m.discardArtifacts(rec.wf.ID, sd.Name, written)
			return types.WrapError(err, fmt.Sprintf("failed to write artifact %s", name))
		}
		written = append(written, a)
	}

	for _, a := range written {
		m.metrics.RecordArtifact(sd.Name)
		m.mu.Lock()
		st := &rec.wf.Stages[indexOf(rec.def, sd.Name)]
		st.Artifacts = append(st.Artifacts, a.Name)
		if st.ArtifactPath == nil {
			path := a.Path
			st.ArtifactPath = &path
		}
		snap := rec.wf.clone()
		m.mu.Unlock()
		m.publish(EventArtifactWritten, snap, sd.Name, a.Name, "")
	}
	return nil
}

func (m *Manager) discardArtifacts(workflowID, stage string, written []*progress.Artifact) {
	for _, a := range written {
		if err := m.store.Remove(workflowID, a.Name); err != nil {
			m.logger.Warn("failed to remove partial artifact",
				zap.String("workflow_id", workflowID),
				zap.String("stage", stage),
				zap.String("artifact", a.Name),
				zap.Error(err))
		}
	}
}

func indexOf(def Definition, name string) int {
	for i, s := range def.Stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (m *Manager) completeStage(rec *record, index int, sd StageDef, res agent.Result, d time.Duration) {
	now := m.now()
	m.mu.Lock()
	wf := rec.wf
	st := &wf.Stages[index]
	rec.results[sd.Name] = res.Clone()
	m.transitionStage(wf, st, StageCompleted)
	st.FinishedAt = &now
	wf.recompute(now)
	snap := wf.clone()
	m.mu.Unlock()

	m.metrics.RecordStageExecution(sd.Name, string(sd.Role), string(StageCompleted), d)
	m.logger.Info("stage completed",
		zap.String("workflow_id", wf.ID),
		zap.String("stage", sd.Name),
		zap.String("status", string(StageCompleted)),
		zap.Duration("duration", d),
		zap.Int("progress", snap.Progress))
	m.publish(EventStageCompleted, snap, sd.Name, "", "")
}

// failStage 标记阶段失败，工作流随之失败，后续阶段保持 pending。
// 关闭时被中断的阶段同样标记失败，但工作流记为 cancelled。
func (m *Manager) failStage(rec *record, index int, sd StageDef, err error, d time.Duration) {
	now := m.now()
	msg := err.Error()

	m.mu.Lock()
	wf := rec.wf
	st := &wf.Stages[index]
	m.transitionStage(wf, st, StageFailed)
	st.FinishedAt = &now
	st.Error = &msg
	// 关闭超时中断了已请求取消的工作流：按取消处理。
	interrupted := wf.CancelRequested && m.baseCtx.Err() != nil && errors.Is(err, context.Canceled)
	wf.recompute(now)
	snap := wf.clone()
	m.mu.Unlock()

	m.metrics.RecordStageExecution(sd.Name, string(sd.Role), string(StageFailed), d)
	m.logger.Warn("stage failed",
		zap.String("workflow_id", wf.ID),
		zap.String("stage", sd.Name),
		zap.String("status", string(StageFailed)),
		zap.Duration("duration", d),
		zap.Error(err))
	m.publish(EventStageFailed, snap, sd.Name, "", msg)

	if interrupted {
		m.finish(rec, StatusCancelled, "cancelled: stage interrupted by shutdown")
		return
	}
	m.finish(rec, StatusFailed, fmt.Sprintf("stage %s failed: %s", sd.Name, msg))
}

func (m *Manager) markRunning(rec *record) bool {
	now := m.now()
	m.mu.Lock()
	wf := rec.wf
	if wf.Status != StatusPending {
		m.mu.Unlock()
		return false
	}
	m.transitionWorkflow(wf, StatusRunning)
	wf.recompute(now)
	snap := wf.clone()
	m.mu.Unlock()

	m.logger.Info("workflow started", zap.String("workflow_id", wf.ID))
	m.publish(EventWorkflowStarted, snap, "", "", "")
	return true
}

// cancelAtBoundary 阶段边界上检查取消请求。剩余阶段保持 pending。
func (m *Manager) cancelAtBoundary(rec *record) bool {
	m.mu.RLock()
	requested := rec.wf.CancelRequested
	m.mu.RUnlock()
	if !requested {
		return false
	}
	m.finish(rec, StatusCancelled, "cancelled by request")
	return true
}

func (m *Manager) abortPending(rec *record, reason string) {
	m.mu.RLock()
	status := rec.wf.Status
	m.mu.RUnlock()
	if status == StatusPending {
		m.finish(rec, StatusCancelled, reason)
	}
}

func (m *Manager) finish(rec *record, status Status, reason string) {
	now := m.now()
	m.mu.Lock()
	wf := rec.wf
	if wf.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	m.transitionWorkflow(wf, status)
	if reason != "" && status != StatusCompleted {
		wf.Error = reason
	}
	wf.recompute(now)
	snap := wf.clone()
	m.mu.Unlock()

	m.metrics.RecordWorkflowFinished(string(wf.Type), string(status))
	m.logger.Info("workflow finished",
		zap.String("workflow_id", wf.ID),
		zap.String("status", string(status)),
		zap.Int("progress", snap.Progress),
		zap.Duration("elapsed", now.Sub(wf.CreatedAt)))

	evt := EventWorkflowCompleted
	switch status {
	case StatusFailed:
		evt = EventWorkflowFailed
	case StatusCancelled:
		evt = EventWorkflowCancelled
	}
	m.publish(evt, snap, "", "", snap.Error)
}

// transitionStage / transitionWorkflow 必须在持有 m.mu 时调用。
// 非法迁移说明内部逻辑有误，记录后忽略。
func (m *Manager) transitionStage(wf *Workflow, st *Stage, next StageStatus) {
	if !st.Status.CanTransitionTo(next) {
		m.logger.Error("illegal stage transition",
			zap.String("workflow_id", wf.ID),
			zap.String("stage", st.Name),
			zap.String("from", string(st.Status)),
			zap.String("to", string(next)))
		return
	}
	st.Status = next
}

func (m *Manager) transitionWorkflow(wf *Workflow, next Status) {
	if !wf.Status.CanTransitionTo(next) {
		m.logger.Error("illegal workflow transition",
			zap.String("workflow_id", wf.ID),
			zap.String("from", string(wf.Status)),
			zap.String("to", string(next)))
		return
	}
	wf.Status = next
}

func (m *Manager) publish(t EventType, snap *Workflow, stage, artifact, errMsg string) {
	evt := Event{
		Type:       t,
		WorkflowID: snap.ID,
		Stage:      stage,
		Status:     string(snap.Status),
		Progress:   snap.Progress,
		Artifact:   artifact,
		Error:      errMsg,
		Timestamp:  m.now(),
	}
	if stage != "" {
		if st, ok := snap.Stage(stage); ok {
			evt.Status = string(st.Status)
		}
	}
	m.bus.Publish(evt)
}

func (m *Manager) snapshot(rec *record) *Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rec.wf.clone()
}

// =============================================================================
// 🔍 查询
// =============================================================================

func (m *Manager) lookup(id string) (*record, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "workflow %s not found", id)
	}
	return rec, nil
}

// Status 返回工作流快照。
func (m *Manager) Status(id string) (*Workflow, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.snapshot(rec), nil
}

// Results 返回已完成阶段的结果，运行中也可读取。
func (m *Manager) Results(id string) (*Results, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &Results{
		WorkflowID: id,
		Status:     rec.wf.Status,
		Results:    make(map[string]agent.Result, len(rec.results)),
	}
	for _, st := range rec.wf.Stages {
		if st.Status != StageCompleted {
			continue
		}
		if r, ok := rec.results[st.Name]; ok {
			out.Results[st.Name] = r.Clone()
		}
	}
	return out, nil
}

// Cancel 请求取消。pending 的工作流立即取消；运行中的在下一个阶段边界取消；
// 已结束的工作流不受影响，直接返回当前状态。
func (m *Manager) Cancel(id string) (*Workflow, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	wf := rec.wf
	if wf.Status.IsTerminal() {
		snap := wf.clone()
		m.mu.Unlock()
		return snap, nil
	}
	wf.CancelRequested = true
	pending := wf.Status == StatusPending
	wf.recompute(m.now())
	m.mu.Unlock()

	m.logger.Info("cancellation requested", zap.String("workflow_id", id), zap.Bool("pending", pending))
	if pending {
		m.finish(rec, StatusCancelled, "cancelled by request")
		rec.stopWaiting()
	}
	return m.snapshot(rec), nil
}

// List 按创建顺序返回所有工作流。
func (m *Manager) List() []*Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workflow, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].wf.clone())
	}
	return out
}

// ListByTypes 只返回指定类型的工作流。
func (m *Manager) ListByTypes(wfTypes ...Type) []*Workflow {
	allowed := make(map[Type]bool, len(wfTypes))
	for _, t := range wfTypes {
		allowed[t] = true
	}
	all := m.List()
	out := all[:0]
	for _, w := range all {
		if allowed[w.Type] {
			out = append(out, w)
		}
	}
	return out
}

// ActiveCount pending 与 running 的工作流数量。
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if !rec.wf.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Subscribe 订阅某个工作流的事件。
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	if _, err := m.lookup(id); err != nil {
		return nil, nil, err
	}
	ch, cancel := m.bus.Subscribe(id)
	return ch, cancel, nil
}

// Done 工作流结束时关闭的通道。
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return rec.done, nil
}

// Wait 阻塞到工作流结束或 ctx 结束。
func (m *Manager) Wait(ctx context.Context, id string) (*Workflow, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-rec.done:
		return m.snapshot(rec), nil
	case <-ctx.Done():
		return m.snapshot(rec), ctx.Err()
	}
}

// Shutdown 拒绝新工作流并请求取消所有活动工作流，等待它们在阶段边界退出；
// ctx 到期后中断正在执行的阶段。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.records))
	for id, rec := range m.records {
		if !rec.wf.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		_, _ = m.Cancel(id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancelAll()
		return nil
	case <-ctx.Done():
		m.cancelAll()
		<-done
		return ctx.Err()
	}
}

// asServiceError 保留已有错误码，ProviderError 转为 PROVIDER。
func asServiceError(err error, message string) error {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return perr.ToError()
	}
	return types.WrapError(err, message)
}
