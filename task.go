package kernel

import "sync/atomic"

// TaskState enumerates a task's scheduling state.
type TaskState int32

const (
	TaskInit TaskState = iota
	TaskReady
	TaskRunning
	TaskWaiting
	TaskDelayed
	TaskSuspended
)

// String returns a human-readable state name.
func (s TaskState) String() string {
	switch s {
	case TaskInit:
		return "Init"
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskWaiting:
		return "Waiting"
	case TaskDelayed:
		return "Delayed"
	case TaskSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// deadlineInfinite is the sentinel absolute deadline assigned to aperiodic
// tasks and the idle task — it never wins an EDF comparison against a task
// with a real deadline.
const deadlineInfinite = ^uint32(0)

// TaskConfig configures a task at creation time.
type TaskConfig struct {
	// Period is the release period in ticks; 0 marks an aperiodic task.
	Period uint32
	// RelativeDeadline is added to the current tick to produce the task's
	// first absolute deadline. Ignored (treated as infinite) for Period==0.
	RelativeDeadline uint32
	// StackBudget is a logical stack budget in bytes. The task body reports
	// its high-water usage via Task.ReportStackUsage; exceeding StackBudget
	// trips the same fatal handling as a corrupted stack-guard word. A zero
	// budget disables the check. Go gives no portable way to inspect a raw
	// stack pointer or guard word, so the task reports its own usage instead.
	StackBudget int
}

// TaskFunc is a task's entry point. Idiomatic bodies loop forever, calling
// Yield/Delay or a sync primitive's blocking operation at every iteration —
// those are this kernel's suspension points.
type TaskFunc func(t *Task, arg any)

// TaskStats is a point-in-time snapshot of a task's scheduling statistics,
// returned by Kernel.TaskListSnapshot.
type TaskStats struct {
	Name           string
	State          TaskState
	Period         uint32
	Deadline       uint32
	Arrival        uint32
	WakeupTime     uint32
	SwitchCount    uint64
	MinFreeStack   int
	LastExecTicks  uint32
	AvgExecTicks   uint32
	MaxExecTicks   uint32
	DeadlineMisses uint32
}

// Task is a Task Control Block: one per task, created once and never
// destroyed. In place of raw stack-pointer/register-frame fields, each Task
// owns a goroutine and a single-slot "baton" channel used to hand off
// logical running status — Go gives no safe way to swap a raw stack or
// forcibly preempt a goroutine executing arbitrary user code, so a task
// preempted by the tick handler keeps executing until its next suspension
// point, while every parked task goroutine sits blocked on its own resume
// channel until the scheduler hands it the baton.
type Task struct {
	_ [sizeOfCacheLine]byte // separate neighbouring TCBs' hot atomics onto distinct cache lines

	Name string
	fn   TaskFunc
	arg  any
	k    *Kernel

	resume chan struct{} // kernel → task: "you are the running task now"

	state atomic.Int32 // TaskState; mutated only while the kernel critical section is held

	period     uint32
	deadline   uint32
	arrival    uint32
	wakeupTime uint32

	stackBudget int
	stackUsed   atomic.Int64
	guardOK     atomic.Bool

	switchCount    uint64
	minFreeStack   int
	lastExecTicks  uint32
	avgExecTicks   uint32
	maxExecTicks   uint32
	deadlineMisses uint32
	execStart      uint32

	listNext *Task // permanent link in Kernel.tasks
	waitNext *Task // transient link in exactly one wait queue at a time

	// parked is true while the task's goroutine is (about to be) blocked on
	// resume. Guarded by the kernel critical section. The scheduler hands
	// the baton only to parked tasks: a task preempted mid-execution is not
	// parked, keeps running until its next suspension point, and discovers
	// there whether it is still the runner.
	parked bool

	// queuedWait distinguishes the two reasons a task can be TaskWaiting:
	// false means a periodic release wait (set by Yield, cleared by the tick
	// handler once arrival<=tick); true means parked on a semaphore/mutex
	// wait list, where only that primitive's Post/Unlock may move it back to
	// Ready. Without this, a periodic task's stale arrival (last advanced at
	// its own Yield) would satisfy the tick handler's release-wake check
	// while the task is still linked in a wait list, breaking the rule that
	// a task sits in at most one wait queue and that next/link fields carry
	// exactly one meaning at a time.
	queuedWait bool
}

// State returns the task's current scheduling state.
func (t *Task) State() TaskState {
	return TaskState(t.state.Load())
}

// Deadline returns the task's current absolute deadline. Every mutation of
// deadline (release advance, mutex donation/restore) happens under the
// kernel's critical section rather than atomically, since it is always
// read together with other scheduling fields during selection — so the
// getter takes the same section rather than risk a torn read.
func (t *Task) Deadline() uint32 {
	t.k.crit.enter()
	defer t.k.crit.exit()
	return t.deadline
}

// Period returns the task's release period (0 for aperiodic).
func (t *Task) Period() uint32 {
	return t.period
}

// ReportStackUsage records a logical stack high-water mark for the task. A
// task body calls this periodically (typically once per loop iteration)
// with its deepest observed call-stack usage; exceeding StackBudget trips
// the same fatal handling as a corrupted guard word on the original target.
func (t *Task) ReportStackUsage(bytes int) {
	if bytes < 0 {
		return
	}
	for {
		cur := t.stackUsed.Load()
		if int64(bytes) <= cur {
			break
		}
		if t.stackUsed.CompareAndSwap(cur, int64(bytes)) {
			break
		}
	}
	if t.stackBudget > 0 && bytes > t.stackBudget {
		t.guardOK.Store(false)
	}
}

// guardCorrupted reports whether the stack guard has tripped.
func (t *Task) guardCorrupted() bool {
	return !t.guardOK.Load()
}

// run is the task's goroutine body, launched once from Kernel.CreateTask. It
// blocks until first scheduled, then executes the task function; on return
// (a task body is allowed to return, unlike the original's infinite-loop
// convention) the task is permanently suspended and never scheduled again.
func (t *Task) run() {
	<-t.resume
	t.fn(t, t.arg)
	t.k.retireTask(t)
}

// Yield ends the task's current activation: periodic tasks advance their
// release window and become Waiting until the tick handler re-arms them;
// aperiodic tasks stay Ready, simply offering the scheduler a chance to
// pick something else.
func (t *Task) Yield() {
	k := t.k
	k.crit.enter()
	if t.period > 0 {
		t.queuedWait = false
		t.state.Store(int32(TaskWaiting))
		t.arrival += t.period
		t.deadline += t.period
	} else {
		t.state.Store(int32(TaskReady))
	}
	mustBlock := k.suspendLocked(t)
	k.crit.exit()
	if mustBlock {
		<-t.resume
	}
}

// Delay puts the task to sleep for at least the given number of ticks: it
// becomes Delayed until the tick handler observes its wakeup time arriving.
func (t *Task) Delay(ticks uint32) {
	if ticks == 0 {
		t.Yield()
		return
	}
	k := t.k
	k.crit.enter()
	t.wakeupTime = k.tick.Load() + ticks
	t.state.Store(int32(TaskDelayed))
	mustBlock := k.suspendLocked(t)
	k.crit.exit()
	if mustBlock {
		<-t.resume
	}
}

// snapshotLocked builds a TaskStats copy. Callers must hold the kernel
// critical section so the snapshot is internally consistent.
func (t *Task) snapshotLocked() TaskStats {
	return TaskStats{
		Name:           t.Name,
		State:          t.State(),
		Period:         t.period,
		Deadline:       t.deadline,
		Arrival:        t.arrival,
		WakeupTime:     t.wakeupTime,
		SwitchCount:    t.switchCount,
		MinFreeStack:   t.minFreeStack,
		LastExecTicks:  t.lastExecTicks,
		AvgExecTicks:   t.avgExecTicks,
		MaxExecTicks:   t.maxExecTicks,
		DeadlineMisses: t.deadlineMisses,
	}
}
