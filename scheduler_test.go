package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newBareTask builds a Task for white-box scheduler tests without spawning
// its goroutine — selectTaskLocked/finishExecutionLocked only ever touch
// scheduling fields, so a live task.run() goroutine isn't needed to exercise
// them directly.
func newBareTask(name string, deadline uint32, state TaskState) *Task {
	t := &Task{Name: name, deadline: deadline}
	t.guardOK.Store(true)
	t.state.Store(int32(state))
	return t
}

// TestSelectTaskLockedPicksEarliestDeadline covers the core EDF
// ordering invariant: the Ready task with the numerically smallest absolute
// deadline is selected, regardless of creation order.
func TestSelectTaskLockedPicksEarliestDeadline(t *testing.T) {
	k := New()

	a := newBareTask("a", 10, TaskReady)
	b := newBareTask("b", 3, TaskReady)
	c := newBareTask("c", 7, TaskReady)
	a.listNext = k.tasks
	b.listNext = a
	c.listNext = b
	k.tasks = c

	require.Same(t, b, k.selectTaskLocked())
}

func TestSelectTaskLockedFallsBackToIdle(t *testing.T) {
	k := New()
	a := newBareTask("a", 10, TaskWaiting)
	a.listNext = k.tasks
	k.tasks = a

	require.Same(t, k.idle, k.selectTaskLocked())
}

// TestSelectTaskLockedTieBreaksByListOrder: on equal deadlines the kernel
// resolves ties in favor of the first Ready task the scan encounters, and
// that order is stable within one selection pass.
func TestSelectTaskLockedTieBreaksByListOrder(t *testing.T) {
	k := New()
	a := newBareTask("a", 5, TaskReady)
	b := newBareTask("b", 5, TaskReady)
	a.listNext = k.tasks
	b.listNext = a
	k.tasks = b

	require.Same(t, b, k.selectTaskLocked())
}

// TestFinishExecutionLockedTracksStats covers the EMA execution-time
// average, deadline-miss detection, and switch counting that
// finishExecutionLocked performs on every context switch.
func TestFinishExecutionLockedTracksStats(t *testing.T) {
	k := New()
	task := newBareTask("t", 10, TaskRunning)
	task.period = 5
	task.execStart = 0

	k.finishExecutionLocked(task, 4)
	require.EqualValues(t, 4, task.lastExecTicks)
	require.EqualValues(t, 4, task.avgExecTicks)
	require.EqualValues(t, 1, task.switchCount)
	require.EqualValues(t, 0, task.deadlineMisses)

	task.execStart = 4
	k.finishExecutionLocked(task, 20) // tick(20) > deadline(10): a miss
	require.EqualValues(t, 16, task.lastExecTicks)
	require.EqualValues(t, 5, task.avgExecTicks) // (16 + 7*4) / 8
	require.EqualValues(t, 2, task.switchCount)
	require.EqualValues(t, 1, task.deadlineMisses)
	require.EqualValues(t, 1, k.stats.Snapshot().DeadlineMisses)
}

// TestFinishExecutionLockedTracksStackWatermark exercises the minFreeStack
// low-watermark update against a task's reported stack usage.
func TestFinishExecutionLockedTracksStackWatermark(t *testing.T) {
	k := New()
	task := newBareTask("t", deadlineInfinite, TaskRunning)
	task.stackBudget = 100
	task.minFreeStack = 100
	task.execStart = 0

	task.ReportStackUsage(40)
	k.finishExecutionLocked(task, 1)
	require.Equal(t, 60, task.minFreeStack)

	task.execStart = 1
	task.ReportStackUsage(70)
	k.finishExecutionLocked(task, 2)
	require.Equal(t, 30, task.minFreeStack)

	// a smaller report afterward must not raise the watermark back up
	task.execStart = 2
	task.ReportStackUsage(10)
	k.finishExecutionLocked(task, 3)
	require.Equal(t, 30, task.minFreeStack)
}

func TestCreateTaskRejectsNilArguments(t *testing.T) {
	k := New()
	require.Error(t, k.CreateTask(nil, func(*Task, any) {}, nil, TaskConfig{}))
	require.Error(t, k.CreateTask(&Task{}, nil, nil, TaskConfig{}))
}
