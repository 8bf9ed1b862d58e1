package workflow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStageStatuses = []StageStatus{StagePending, StageRunning, StageCompleted, StageFailed, StageSkipped}

// 任意一串迁移请求中，只接受合法的迁移，状态等级只增不减。
func TestProperty_StageTransitionsAreMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("accepted transitions never lower the status rank", prop.ForAll(
		func(steps []int) bool {
			cur := StagePending
			for _, s := range steps {
				next := allStageStatuses[s]
				if !cur.CanTransitionTo(next) {
					continue
				}
				if next.rank() <= cur.rank() {
					t.Logf("%s -> %s lowered rank", cur, next)
					return false
				}
				cur = next
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(allStageStatuses)-1)),
	))

	properties.Property("terminal stage statuses accept nothing", prop.ForAll(
		func(a, b int) bool {
			from, to := allStageStatuses[a], allStageStatuses[b]
			if from.IsTerminal() {
				return !from.CanTransitionTo(to)
			}
			return true
		},
		gen.IntRange(0, len(allStageStatuses)-1),
		gen.IntRange(0, len(allStageStatuses)-1),
	))

	properties.TestingRun(t)
}

// progress 与 current_stage 始终由阶段状态推导。
func TestProperty_ProgressFollowsStages(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("progress is the rounded share of done stages", prop.ForAll(
		func(statuses []int) bool {
			wf := &Workflow{Stages: make([]Stage, len(statuses))}
			done := 0
			for i, s := range statuses {
				wf.Stages[i].Status = allStageStatuses[s]
				if wf.Stages[i].Status.Done() {
					done++
				}
			}
			wf.recompute(time.Unix(0, 0))

			if wf.CurrentStage != done || wf.TotalStages != len(statuses) {
				return false
			}
			if wf.Progress < 0 || wf.Progress > 100 {
				return false
			}
			if len(statuses) > 0 && done == len(statuses) && wf.Progress != 100 {
				return false
			}
			return done != 0 || wf.Progress == 0
		},
		gen.SliceOfN(13, gen.IntRange(0, len(allStageStatuses)-1)),
	))

	properties.TestingRun(t)
}

func TestWorkflowTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCancelled, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusPending, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusFailed, StatusCancelled, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v want %v", c.from, c.to, got, c.ok)
		}
	}
}
