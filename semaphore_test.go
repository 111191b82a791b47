package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSemaphoreEnqueueDequeueFIFOOrder exercises the semaphore wait list
// directly: waiters are released in arrival order, not EDF order — the
// opposite tiebreak from the scheduler and the mutex unlock handoff, since a
// semaphore has no single owner to donate a deadline to.
func TestSemaphoreEnqueueDequeueFIFOOrder(t *testing.T) {
	k := New()
	sem, err := NewSemaphore(k, 0, 1)
	require.NoError(t, err)

	a := newBareTask("a", 10, TaskWaiting)
	b := newBareTask("b", 20, TaskWaiting)
	c := newBareTask("c", 5, TaskWaiting) // earliest deadline, but still dequeued last

	k.crit.enter()
	sem.enqueueLocked(a)
	sem.enqueueLocked(b)
	sem.enqueueLocked(c)
	first := sem.dequeueLocked()
	second := sem.dequeueLocked()
	third := sem.dequeueLocked()
	k.crit.exit()

	require.Same(t, a, first)
	require.Same(t, b, second)
	require.Same(t, c, third)
}

func TestSemaphoreTryWaitRespectsCount(t *testing.T) {
	k := New()
	sem, err := NewSemaphore(k, 2, 2)
	require.NoError(t, err)

	require.Equal(t, StatusOK, sem.TryWait())
	require.Equal(t, StatusOK, sem.TryWait())
	require.Equal(t, StatusTimeout, sem.TryWait())
	require.Equal(t, 0, sem.GetCount())
}

func TestSemaphorePostSaturatesAtMaxCount(t *testing.T) {
	k := New()
	sem, err := NewSemaphore(k, 1, 1)
	require.NoError(t, err)

	sem.Post()
	require.Equal(t, 1, sem.GetCount())
}

func TestNewSemaphoreRejectsInvalidArguments(t *testing.T) {
	k := New()
	_, err := NewSemaphore(k, -1, 4)
	require.Error(t, err)
	_, err = NewSemaphore(k, 5, 4)
	require.Error(t, err)
	_, err = NewSemaphore(k, 0, 0)
	require.Error(t, err)
}

// TestMutexRemoveLockedUnlinksArbitraryWaiter covers the property that makes
// removeLocked necessary over a plain pop: Unlock's EDF scan can pick any
// waiter, not just the head of the list.
func TestMutexRemoveLockedUnlinksArbitraryWaiter(t *testing.T) {
	k := New()
	m, err := NewMutex(k)
	require.NoError(t, err)

	a := newBareTask("a", 10, TaskWaiting)
	b := newBareTask("b", 20, TaskWaiting)
	c := newBareTask("c", 30, TaskWaiting)

	k.crit.enter()
	m.enqueueLocked(a)
	m.enqueueLocked(b)
	m.enqueueLocked(c)
	m.removeLocked(b) // remove from the middle of the list
	k.crit.exit()

	k.crit.enter()
	remaining := m.dequeueAll()
	k.crit.exit()

	require.Equal(t, []*Task{a, c}, remaining)
}

// dequeueAll drains the mutex wait list front-to-back for test inspection.
func (m *Mutex) dequeueAll() []*Task {
	var out []*Task
	for cur := m.waitHead; cur != nil; cur = cur.waitNext {
		out = append(out, cur)
	}
	return out
}

func TestNewMutexRejectsInvalidArguments(t *testing.T) {
	_, err := NewMutex(nil)
	require.Error(t, err)
}
