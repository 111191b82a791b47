package kernel

// CreateTask registers a new task with the kernel. t is caller-allocated —
// mirroring a static-storage TCB convention — and must not be moved or
// reused after this call. CreateTask
// may be called before Run(); tasks created after Run() has started join
// the next scheduling decision as Ready.
func (k *Kernel) CreateTask(t *Task, fn TaskFunc, arg any, cfg TaskConfig) error {
	if t == nil || fn == nil {
		return ErrInvalidArgument
	}
	if k.state.IsHalted() {
		return ErrKernelHalted
	}
	k.crit.enter()
	defer k.crit.exit()

	t.fn = fn
	t.arg = arg
	t.k = k
	// Buffered so the scheduler's handoff never blocks in the window between
	// a task marking itself parked and reaching its receive.
	t.resume = make(chan struct{}, 1)
	t.parked = true
	t.period = cfg.Period
	t.stackBudget = cfg.StackBudget
	t.minFreeStack = cfg.StackBudget
	t.guardOK.Store(true)
	t.state.Store(int32(TaskReady))

	tick := k.tick.Load()
	if cfg.Period > 0 {
		t.arrival = tick
		t.deadline = tick + cfg.RelativeDeadline
	} else {
		t.deadline = deadlineInfinite
	}

	t.listNext = k.tasks
	k.tasks = t

	go t.run()

	logInfo(k.opts.logger, "task", t.Name, "task created", map[string]any{"period": t.period})
	return nil
}

// selectTaskLocked picks the Ready task with the numerically smallest
// deadline, idle otherwise. Ties are broken by list order. A plain linear
// scan is used rather than a heap: task tables in this kernel are small
// enough that a heap's bookkeeping overhead isn't worth paying for.
func (k *Kernel) selectTaskLocked() *Task {
	var best *Task
	for task := k.tasks; task != nil; task = task.listNext {
		if task.State() != TaskReady {
			continue
		}
		if best == nil || task.deadline < best.deadline {
			best = task
		}
	}
	if best == nil {
		return k.idle
	}
	return best
}

// scheduleLocked is the scheduler's entry point. Callers must
// already hold the kernel critical section and must have already updated
// the calling task's own state (Ready/Waiting/Delayed) before invoking it.
func (k *Kernel) scheduleLocked() {
	next := k.selectTaskLocked()
	if next == k.running {
		return
	}

	tick := k.tick.Load()
	old := k.running
	if old != nil {
		k.finishExecutionLocked(old, tick)
		// A task preempted mid-execution (its own state untouched by the
		// caller) stays runnable: it keeps executing until its next
		// suspension point, but the scheduler sees it as Ready.
		if old.State() == TaskRunning {
			old.state.Store(int32(TaskReady))
		}
	}
	if next.guardCorrupted() {
		k.fatal(next)
	}

	k.stats.incSwitch()
	next.execStart = tick
	next.state.Store(int32(TaskRunning))
	k.running = next

	logDebug(k.opts.logger, "scheduler", next.Name, "context switch", map[string]any{"tick": tick})

	// Hand off the baton, but only if the new runner is actually parked on
	// its resume channel. A task that was preempted while executing is not
	// parked: no baton is owed, it simply finds k.running == itself at its
	// next suspension point and carries on.
	if next.parked {
		next.parked = false
		next.resume <- struct{}{}
	}
}

// suspendLocked completes a suspension point for task t, which has already
// stored its new state (Ready/Waiting/Delayed). If t is still the current
// runner, the scheduler picks its successor; if t was preempted earlier, its
// activation was already finalized on the preemption path and the CPU now
// belongs to another task, so t must not re-run selection on the runner's
// behalf — it simply parks until selected again. Returns whether the caller
// must block on its resume channel. Callers hold the critical section.
func (k *Kernel) suspendLocked(t *Task) (mustBlock bool) {
	if k.running == t {
		k.scheduleLocked()
	}
	if k.running != t {
		t.parked = true
		return true
	}
	return false
}

// finishExecutionLocked updates the outgoing task's statistics: EMA
// execution time, deadline-miss detection, stack watermark, and
// guard-corruption check.
func (k *Kernel) finishExecutionLocked(old *Task, tick uint32) {
	elapsed := tick - old.execStart
	if old.switchCount == 0 {
		old.avgExecTicks = elapsed
	} else {
		old.avgExecTicks = emaUpdate(old.avgExecTicks, elapsed)
	}
	old.lastExecTicks = elapsed
	if elapsed > old.maxExecTicks {
		old.maxExecTicks = elapsed
	}
	old.switchCount++

	if old.period > 0 && tick > old.deadline {
		old.deadlineMisses++
		k.stats.incDeadlineMiss()
		logWarn(k.opts.logger, "scheduler", old.Name, "deadline miss", map[string]any{"tick": tick, "deadline": old.deadline})
	}

	if old.stackBudget > 0 {
		free := old.stackBudget - int(old.stackUsed.Load())
		if free < old.minFreeStack {
			old.minFreeStack = free
		}
	}

	if old.guardCorrupted() {
		k.fatal(old)
	}
}

// retireTask is invoked when a task function returns; the task becomes
// permanently Suspended and will never be selected again. The scheduler is
// only consulted when the retiree is the current runner: a preempted task
// retiring has no CPU to give up.
func (k *Kernel) retireTask(t *Task) {
	k.crit.enter()
	t.state.Store(int32(TaskSuspended))
	if k.running == t {
		k.scheduleLocked()
	}
	k.crit.exit()
}

// CurrentTask returns the task the scheduler currently believes is running.
func (k *Kernel) CurrentTask() *Task {
	k.crit.enter()
	defer k.crit.exit()
	return k.running
}

// TaskListSnapshot returns a statistics snapshot of every registered task,
// idle task excluded, taken atomically within a critical section.
func (k *Kernel) TaskListSnapshot() []TaskStats {
	k.crit.enter()
	defer k.crit.exit()
	out := make([]TaskStats, 0, k.opts.taskCapacity)
	for task := k.tasks; task != nil; task = task.listNext {
		if task == k.idle {
			continue
		}
		out = append(out, task.snapshotLocked())
	}
	return out
}
