package kernel

import (
	"context"
	"sync/atomic"
	"time"
)

// Kernel is the top-level object owning the tick source, the task table,
// and the EDF scheduler. Construct one with New, register tasks with
// CreateTask, then call Run.
type Kernel struct {
	opts *kernelOptions

	state *fastState
	crit  criticalSection

	tick atomic.Uint32

	tasks   *Task
	running *Task
	idle    *Task

	tickBroadcast chan struct{}

	pools  []*Pool
	timers *timerWheel

	stats KernelStats

	fatalErr atomic.Pointer[FatalError]
	done     chan struct{}
}

// New constructs a Kernel. The idle task is registered automatically.
func New(opts ...Option) *Kernel {
	cfg := resolveOptions(opts)
	k := &Kernel{
		opts:          cfg,
		state:         newFastState(),
		tickBroadcast: make(chan struct{}),
		done:          make(chan struct{}),
		pools:         make([]*Pool, 0, cfg.maxPools),
	}
	k.timers = newTimerWheel(defaultTimerPoolSize)

	idle := &Task{Name: "idle"}
	if err := k.CreateTask(idle, idleBody, nil, TaskConfig{}); err != nil {
		panic(err) // unreachable: fixed, valid arguments
	}
	k.idle = idle

	return k
}

// idleBody is the body of the kernel's self-registered idle task: it waits
// for each tick and re-evaluates the scheduler, simulating "halt the CPU
// until the next interrupt" without an actual WFI.
func idleBody(t *Task, _ any) {
	k := t.k
	for {
		if k.state.IsHalted() {
			return
		}
		k.waitForTick()
		t.Yield()
	}
}

// registerPool attaches a memory pool to the kernel's per-tick refill.
// Returns ErrInvalidArgument if WithMaxPools has already been exhausted.
func (k *Kernel) registerPool(p *Pool) error {
	k.crit.enter()
	defer k.crit.exit()
	if len(k.pools) >= k.opts.maxPools {
		return ErrInvalidArgument
	}
	k.pools = append(k.pools, p)
	return nil
}

// Run starts the tick source and blocks until ctx is canceled, Shutdown is
// called, or a fatal stack-guard error halts the kernel.
func (k *Kernel) Run(ctx context.Context) error {
	if k.state.IsHalted() {
		return ErrKernelHalted
	}
	if !k.state.TryTransition(StateCreated, StateRunning) {
		return ErrKernelAlreadyRunning
	}
	if k.tasks == k.idle {
		k.state.Store(StateCreated)
		return ErrNoTasks
	}

	k.crit.enter()
	k.scheduleLocked() // select the first task to run
	k.crit.exit()

	ticker := time.NewTicker(k.opts.tickPeriod)
	defer ticker.Stop()

	logInfo(k.opts.logger, "kernel", "", "kernel started", nil)

	for {
		select {
		case <-ticker.C:
			if k.state.IsHalted() { // Shutdown was called
				k.halt()
				return nil
			}
			k.tickHandler()
			if fe := k.fatalErr.Load(); fe != nil {
				k.halt()
				return fe
			}
		case <-ctx.Done():
			k.halt()
			return ctx.Err()
		}
	}
}

// halt finalizes a permanent stop: it wakes any goroutine parked in
// waitForTick so it can observe the halted state, then releases Shutdown
// waiters. Called exactly once, from whichever of Run's exit paths is taken.
func (k *Kernel) halt() {
	k.state.Store(StateHalted)
	k.crit.enter()
	close(k.tickBroadcast)
	k.crit.exit()
	close(k.done)
}

// Shutdown halts the kernel's tick source. It is safe to call concurrently
// with Run; Run returns once the next tick or select iteration observes the
// halted state.
func (k *Kernel) Shutdown(ctx context.Context) error {
	if !k.state.IsRunning() {
		return nil
	}
	k.state.Store(StateHalted)
	select {
	case <-k.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fatal records the one unrecoverable condition this kernel recognizes: a
// corrupted stack guard. No recovery is attempted; the next Run loop
// iteration observes fatalErr and halts permanently.
func (k *Kernel) fatal(t *Task) {
	fe := &FatalError{Task: t, Cause: ErrStackOverflow}
	k.fatalErr.CompareAndSwap(nil, fe)
	logError(k.opts.logger, "task", t.Name, "stack guard corrupted", ErrStackOverflow)
}

// Stats returns a snapshot of kernel-wide scheduling counters.
func (k *Kernel) Stats() KernelCounters {
	return k.stats.Snapshot()
}
