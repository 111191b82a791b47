package kernel

// Semaphore is a counting semaphore with an inclusive maximum count and a
// strict FIFO wait list. Waiters are woken in arrival order, not deadline
// order: unlike a mutex, there is no single owner to donate a deadline to,
// so fairness among waiters is the only tiebreak that makes sense here.
type Semaphore struct {
	k *Kernel

	count    int
	maxCount int

	waitHead, waitTail *Task
}

// NewSemaphore creates a semaphore with the given initial and maximum count.
func NewSemaphore(k *Kernel, initialCount, maxCount int) (*Semaphore, error) {
	if k == nil || maxCount <= 0 || initialCount < 0 || initialCount > maxCount {
		return nil, WrapError("kernel: new semaphore", ErrInvalidArgument)
	}
	return &Semaphore{k: k, count: initialCount, maxCount: maxCount}, nil
}

func (s *Semaphore) enqueueLocked(t *Task) {
	t.waitNext = nil
	if s.waitTail == nil {
		s.waitHead, s.waitTail = t, t
		return
	}
	s.waitTail.waitNext = t
	s.waitTail = t
}

func (s *Semaphore) dequeueLocked() *Task {
	t := s.waitHead
	s.waitHead = t.waitNext
	if s.waitHead == nil {
		s.waitTail = nil
	}
	t.waitNext = nil
	return t
}

// Wait blocks the calling task t until the semaphore is available.
func (s *Semaphore) Wait(t *Task) Status {
	k := s.k
	k.crit.enter()
	if s.count > 0 {
		s.count--
		k.crit.exit()
		return StatusOK
	}
	s.enqueueLocked(t)
	t.queuedWait = true
	t.state.Store(int32(TaskWaiting))
	mustBlock := k.suspendLocked(t)
	k.crit.exit()
	if mustBlock {
		<-t.resume
	}
	return StatusOK
}

// TryWait is the non-blocking form; it returns StatusTimeout, not
// StatusEmpty, when the count is zero, so callers can reuse the same
// timeout-handling branch they'd use for WaitTimeout.
func (s *Semaphore) TryWait() Status {
	k := s.k
	k.crit.enter()
	defer k.crit.exit()
	if s.count > 0 {
		s.count--
		return StatusOK
	}
	return StatusTimeout
}

// WaitTimeout polls TryWait/Yield until acquired or ticks elapse, trading a
// dedicated timer-wheel integration for a simple bounded poll loop.
func (s *Semaphore) WaitTimeout(t *Task, ticks uint32) Status {
	deadline := s.k.GetTick() + ticks
	for {
		if st := s.TryWait(); st == StatusOK {
			return StatusOK
		}
		if s.k.GetTick() >= deadline {
			logWarnErr(s.k.opts.logger, "sync", t.Name, "semaphore wait timed out",
				&TimeoutError{Op: "sem_wait", Elapsed: ticks})
			return StatusTimeout
		}
		t.Yield()
	}
}

// Post releases the semaphore: if a task is waiting, it is woken directly
// (the count is left untouched); otherwise the count is incremented,
// saturating at maxCount.
func (s *Semaphore) Post() {
	k := s.k
	k.crit.enter()
	if s.waitHead != nil {
		w := s.dequeueLocked()
		w.queuedWait = false
		w.state.Store(int32(TaskReady))
		k.scheduleLocked()
	} else if s.count < s.maxCount {
		s.count++
	}
	k.crit.exit()
}

// GetCount returns the current count.
func (s *Semaphore) GetCount() int {
	s.k.crit.enter()
	defer s.k.crit.exit()
	return s.count
}
