package workflow

import "time"

// =============================================================================
// 🔄 状态机
// =============================================================================

// Status 工作流状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal 是否为终态。
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var workflowEdges = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransitionTo 工作流状态的合法迁移。终态不能再迁移。
func (s Status) CanTransitionTo(next Status) bool {
	for _, to := range workflowEdges[s] {
		if to == next {
			return true
		}
	}
	return false
}

// StageStatus 阶段状态。
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// Done 阶段是否计入 current_stage（completed 或 skipped）。
func (s StageStatus) Done() bool {
	return s == StageCompleted || s == StageSkipped
}

// IsTerminal 是否为终态。
func (s StageStatus) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

var stageEdges = map[StageStatus][]StageStatus{
	StagePending: {StageRunning, StageSkipped},
	StageRunning: {StageCompleted, StageFailed},
}

// CanTransitionTo 阶段状态的合法迁移：pending → running → completed|failed，
// 或 pending → skipped。
func (s StageStatus) CanTransitionTo(next StageStatus) bool {
	for _, to := range stageEdges[s] {
		if to == next {
			return true
		}
	}
	return false
}

// rank 用于检查状态单调性：数值只增不减。
func (s StageStatus) rank() int {
	switch s {
	case StagePending:
		return 0
	case StageRunning:
		return 1
	default:
		return 2
	}
}

// Stage 一个阶段的运行记录。
type Stage struct {
	Name         string      `json:"name"`
	Role         string      `json:"role"`
	Status       StageStatus `json:"status"`
	StartedAt    *time.Time  `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at"`
	Error        *string     `json:"error"`
	ArtifactPath *string     `json:"artifact_path"`
	Artifacts    []string    `json:"artifacts,omitempty"`
}

// Workflow 工作流记录。results 不参与状态投影，通过 Manager.Results 读取。
type Workflow struct {
	ID              string    `json:"workflow_id"`
	Topic           string    `json:"topic"`
	Description     string    `json:"description"`
	Type            Type      `json:"workflow_type"`
	TestMode        bool      `json:"test_mode"`
	Status          Status    `json:"status"`
	Progress        int       `json:"progress"`
	CurrentStage    int       `json:"current_stage"`
	TotalStages     int       `json:"total_stages"`
	Stages          []Stage   `json:"stages"`
	Error           string    `json:"error,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
	ProgressDir     string    `json:"progress_dir"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	stageCtx map[string]any
}

// recompute 在每次迁移后重新计算派生字段。
func (w *Workflow) recompute(now time.Time) {
	done := 0
	for _, st := range w.Stages {
		if st.Status.Done() {
			done++
		}
	}
	w.CurrentStage = done
	w.TotalStages = len(w.Stages)
	if w.TotalStages > 0 {
		w.Progress = (100*done + w.TotalStages/2) / w.TotalStages
	}
	w.UpdatedAt = now
}

// clone 返回可以交给读者的副本。
func (w *Workflow) clone() *Workflow {
	cp := *w
	cp.Stages = make([]Stage, len(w.Stages))
	copy(cp.Stages, w.Stages)
	for i := range cp.Stages {
		if w.Stages[i].Artifacts != nil {
			cp.Stages[i].Artifacts = append([]string(nil), w.Stages[i].Artifacts...)
		}
	}
	cp.stageCtx = nil
	return &cp
}

// Stage 按名称查找阶段。
func (w *Workflow) Stage(name string) (Stage, bool) {
	for _, st := range w.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}

// FailedStage 返回失败的阶段（如有）。
func (w *Workflow) FailedStage() (Stage, bool) {
	for _, st := range w.Stages {
		if st.Status == StageFailed {
			return st, true
		}
	}
	return Stage{}, false
}
