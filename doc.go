// Package kernel implements the core of Smart-OS: a minimal preemptive
// real-time kernel for a single-core 32-bit microcontroller-class target,
// built around an Earliest-Deadline-First (EDF) scheduler.
//
// # Architecture
//
// A [Kernel] owns the tick source, the task table, and the scheduler. Tasks
// are cooperative state machines executed as goroutines, but only one task's
// goroutine is ever logically "running" at a time — control is handed off
// via a per-task baton channel, simulating the single-core preemptive model
// a real target would implement with stack-switching assembly.
//
// Five subsystems sit on top of the kernel: a fixed-block [Pool] allocator,
// a bounded [Queue] of fixed-width messages, counting [Semaphore] and
// recursive deadline-inheriting [Mutex] primitives, and a software timer
// wheel ([Kernel.CreateTimer], identified by [TimerID]). All of them share
// the kernel's tick and critical section.
//
// # Usage
//
//	k := kernel.New(kernel.WithTickPeriod(time.Millisecond))
//
//	var t1, t2 kernel.Task
//	k.CreateTask(&t1, producer, nil, kernel.TaskConfig{Period: 10, RelativeDeadline: 10})
//	k.CreateTask(&t2, consumer, nil, kernel.TaskConfig{Period: 4, RelativeDeadline: 4})
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := k.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Types
//
// Non-blocking try-ops (pool, queue, semaphore, mutex) return a closed
// [Status] outcome set rather than an [error]. Programmer
// errors (bad configuration, double init) are reported as wrapped [error]
// values via [WrapError]. The sem/mutex timeout forms return
// [StatusTimeout] and log a [TimeoutError] when they expire.
package kernel
