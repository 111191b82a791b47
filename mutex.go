package kernel

// Mutex is a recursive mutex with single-hop deadline inheritance, guarding
// against priority inversion by temporarily donating the contending task's
// deadline to the owner.
type Mutex struct {
	k *Kernel

	locked           bool
	owner            *Task
	depth            int
	originalDeadline uint32

	waitHead, waitTail *Task
}

// NewMutex creates an unlocked, recursive mutex.
func NewMutex(k *Kernel) (*Mutex, error) {
	if k == nil {
		return nil, WrapError("kernel: new mutex", ErrInvalidArgument)
	}
	return &Mutex{k: k}, nil
}

func (m *Mutex) enqueueLocked(t *Task) {
	t.waitNext = nil
	if m.waitTail == nil {
		m.waitHead, m.waitTail = t, t
		return
	}
	m.waitTail.waitNext = t
	m.waitTail = t
}

// removeLocked unlinks t from the wait list wherever it sits, needed because
// unlock's EDF scan may pick any waiter, not just the head.
func (m *Mutex) removeLocked(t *Task) {
	var prev *Task
	for cur := m.waitHead; cur != nil; cur = cur.waitNext {
		if cur == t {
			if prev == nil {
				m.waitHead = cur.waitNext
			} else {
				prev.waitNext = cur.waitNext
			}
			if cur == m.waitTail {
				m.waitTail = prev
			}
			cur.waitNext = nil
			return
		}
		prev = cur
	}
}

// Lock acquires the mutex for task t, recursing if t is already the owner,
// and donating t's deadline to the current owner on contention.
func (m *Mutex) Lock(t *Task) Status {
	k := m.k
	k.crit.enter()
	if !m.locked {
		m.locked = true
		m.owner = t
		m.depth = 1
		m.originalDeadline = t.deadline
		k.crit.exit()
		return StatusOK
	}
	if m.owner == t {
		m.depth++
		k.crit.exit()
		return StatusOK
	}

	if t.deadline < m.owner.deadline {
		m.owner.deadline = t.deadline
	}
	m.enqueueLocked(t)
	t.queuedWait = true
	t.state.Store(int32(TaskWaiting))
	mustBlock := k.suspendLocked(t)
	k.crit.exit()
	if mustBlock {
		<-t.resume
	}
	return StatusOK
}

// TryLock is the non-blocking form.
func (m *Mutex) TryLock(t *Task) Status {
	k := m.k
	k.crit.enter()
	defer k.crit.exit()
	if !m.locked {
		m.locked = true
		m.owner = t
		m.depth = 1
		m.originalDeadline = t.deadline
		return StatusOK
	}
	if m.owner == t {
		m.depth++
		return StatusOK
	}
	return StatusTimeout
}

// LockTimeout polls TryLock/Yield until acquired or ticks elapse, the same
// polling pattern as the semaphore's WaitTimeout.
func (m *Mutex) LockTimeout(t *Task, ticks uint32) Status {
	deadline := m.k.GetTick() + ticks
	for {
		if st := m.TryLock(t); st == StatusOK {
			return StatusOK
		}
		if m.k.GetTick() >= deadline {
			logWarnErr(m.k.opts.logger, "sync", t.Name, "mutex lock timed out",
				&TimeoutError{Op: "mutex_lock", Elapsed: ticks})
			return StatusTimeout
		}
		t.Yield()
	}
}

// Unlock releases one level of recursion; on the final unlock it restores
// the owner's original deadline and hands ownership to the waiter with the
// minimum deadline (EDF order, not FIFO).
func (m *Mutex) Unlock(t *Task) Status {
	k := m.k
	k.crit.enter()
	if m.owner != t {
		k.crit.exit()
		return StatusNotOwner
	}
	m.depth--
	if m.depth > 0 {
		k.crit.exit()
		return StatusOK
	}

	t.deadline = m.originalDeadline

	if m.waitHead == nil {
		m.locked = false
		m.owner = nil
		k.crit.exit()
		return StatusOK
	}

	var winner *Task
	for cur := m.waitHead; cur != nil; cur = cur.waitNext {
		if winner == nil || cur.deadline < winner.deadline {
			winner = cur
		}
	}
	m.removeLocked(winner)
	m.owner = winner
	m.depth = 1
	m.originalDeadline = winner.deadline
	winner.queuedWait = false
	winner.state.Store(int32(TaskReady))
	k.scheduleLocked()
	k.crit.exit()
	return StatusOK
}

// IsLocked reports whether the mutex is currently held.
func (m *Mutex) IsLocked() bool {
	m.k.crit.enter()
	defer m.k.crit.exit()
	return m.locked
}
