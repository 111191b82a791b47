package kernel

// tickHandler advances the tick count, refills pool op budgets, expires
// timers, and promotes any Waiting/Delayed task whose wakeup time has
// arrived, before handing off to the scheduler. It is invoked once per tick
// period from Kernel.Run's ticker loop and holds the kernel's critical
// section throughout, except while a timer callback runs; the WithOnTick
// hook is called after the section is released.
func (k *Kernel) tickHandler() {
	k.crit.enter()

	tick := k.tick.Add(1)
	k.stats.incTick()

	for _, p := range k.pools {
		p.refillLocked()
	}

	k.timers.advanceLocked(k, tick)

	changed := false
	for task := k.tasks; task != nil; task = task.listNext {
		switch task.State() {
		case TaskWaiting:
			if !task.queuedWait && task.period > 0 && task.arrival <= tick {
				task.state.Store(int32(TaskReady))
				changed = true
			}
		case TaskDelayed:
			if task.wakeupTime <= tick {
				task.state.Store(int32(TaskReady))
				changed = true
			}
		}
	}

	if changed {
		k.scheduleLocked()
	}

	old := k.tickBroadcast
	k.tickBroadcast = make(chan struct{})

	k.crit.exit()
	close(old)

	if fn := k.opts.onTick; fn != nil {
		fn(tick)
	}
}

// GetTick returns the monotonic tick count since boot.
func (k *Kernel) GetTick() uint32 {
	return k.tick.Load()
}

// waitForTick blocks until the next tick handler completes. The idle task
// uses this instead of busy-polling, the Go analogue of halting the CPU
// until the next interrupt.
func (k *Kernel) waitForTick() {
	k.crit.enter()
	ch := k.tickBroadcast
	k.crit.exit()
	<-ch
}
