package kernel

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// criticalSection plays the role of the interrupt-disable/enable pair a
// real microcontroller target would use to bracket every shared-state
// mutation, with a nesting counter: enter unconditionally disables and
// increments; exit decrements and only re-enables once the count returns
// to zero; an unbalanced exit (count already zero) is silently ignored,
// as defined behavior.
//
// A single-core MCU has exactly one execution context to disable interrupts
// on, so the nesting counter there is globally shared. Go has real
// goroutine parallelism instead, so nesting is tracked per holder: the
// goroutine that currently owns the section may re-enter freely (mirroring
// an ISR re-disabling already-disabled interrupts), while any other
// goroutine genuinely contends for the underlying mutex.
type criticalSection struct {
	mu    sync.Mutex
	owner atomic.Uint64 // goroutine id of the current holder; 0 means unheld
	depth atomic.Int32
}

// goroutineID recovers the calling goroutine's id from its stack trace
// header ("goroutine 123 [running]:") — Go exposes no public API for this,
// but a nesting-aware critical section has no other way to recognize
// reentrant calls from the same logical context.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

// enter acquires the section, or simply increments the nesting count if the
// calling goroutine already holds it.
func (c *criticalSection) enter() {
	gid := goroutineID()
	if c.depth.Load() > 0 && c.owner.Load() == gid {
		c.depth.Add(1)
		return
	}
	c.mu.Lock()
	c.owner.Store(gid)
	c.depth.Store(1)
}

// exit decrements the nesting count, releasing the section only once it
// returns to zero. An unbalanced exit (count already zero) is a silent
// no-op, not an error.
func (c *criticalSection) exit() {
	if c.depth.Load() == 0 {
		return
	}
	if c.depth.Add(-1) == 0 {
		c.owner.Store(0)
		c.mu.Unlock()
	}
}

// EnterCritical disables preemption and scheduler-visible state mutation
// until a matching ExitCritical. It is reentrant for
// the calling goroutine and safe to call from the tick handler's context
// (a running timer callback) or from task context.
func (k *Kernel) EnterCritical() {
	k.crit.enter()
}

// ExitCritical re-enables what the matching EnterCritical disabled. Calling
// it without a matching EnterCritical is a silent no-op, not an error.
func (k *Kernel) ExitCritical() {
	k.crit.exit()
}
