package kernel_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	kernel "github.com/smartos-go/kernel"

	"github.com/stretchr/testify/require"
)

// TestMutexDeadlineDonation checks that a low-priority task
// holding a mutex has its deadline temporarily lowered to match a
// higher-priority (earlier-deadline) task blocked waiting for the same
// mutex, and the donation is undone once the mutex is released.
func TestMutexDeadlineDonation(t *testing.T) {
	k := kernel.New(kernel.WithTickPeriod(time.Millisecond))
	m, err := kernel.NewMutex(k)
	require.NoError(t, err)

	var low kernel.Task
	low.Name = "low"

	lowAcquired := make(chan struct{})
	var releaseLow atomic.Bool

	lowBody := func(tk *kernel.Task, _ any) {
		m.Lock(tk)
		close(lowAcquired)
		// aperiodic Yield offers the scheduler a chance to run something
		// else without this task itself leaving Ready — the cooperative
		// analogue of a task "busy" on the CPU while it holds the mutex.
		for !releaseLow.Load() {
			tk.Yield()
		}
		m.Unlock(tk)
	}
	require.NoError(t, k.CreateTask(&low, lowBody, nil, kernel.TaskConfig{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go k.Run(ctx)

	select {
	case <-lowAcquired:
	case <-time.After(time.Second):
		t.Fatal("low never acquired the mutex")
	}
	originalDeadline := low.Deadline()

	var high kernel.Task
	high.Name = "high"
	highDone := make(chan struct{})
	highBody := func(tk *kernel.Task, _ any) {
		m.Lock(tk)
		m.Unlock(tk)
		close(highDone)
	}
	// Created only after low is confirmed to hold the mutex, so the initial
	// EDF selection race between the two tasks never arises.
	require.NoError(t, k.CreateTask(&high, highBody, nil, kernel.TaskConfig{Period: 1_000_000, RelativeDeadline: 5}))

	require.Eventually(t, func() bool {
		return low.Deadline() == high.Deadline()
	}, time.Second, time.Millisecond,
		"low's deadline must be donated down to high's while high waits on the mutex")

	releaseLow.Store(true)

	select {
	case <-highDone:
	case <-time.After(time.Second):
		t.Fatal("high never acquired the mutex after low released it")
	}

	require.Eventually(t, func() bool {
		return low.Deadline() == originalDeadline
	}, time.Second, time.Millisecond,
		"low's deadline must be restored once it releases the mutex")

	cancel()
}

// TestSemaphoreWaitPostWakesWaiter covers the semaphore's blocking Wait:
// a task blocked in Wait on an empty semaphore does not proceed until Post
// is called.
func TestSemaphoreWaitPostWakesWaiter(t *testing.T) {
	k := kernel.New(kernel.WithTickPeriod(time.Millisecond))
	sem, err := kernel.NewSemaphore(k, 0, 1)
	require.NoError(t, err)

	var waiter kernel.Task
	waiter.Name = "waiter"
	acquired := make(chan struct{})
	waiterBody := func(tk *kernel.Task, _ any) {
		sem.Wait(tk)
		close(acquired)
	}
	require.NoError(t, k.CreateTask(&waiter, waiterBody, nil, kernel.TaskConfig{}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go k.Run(ctx)

	require.Never(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond, "waiter must not proceed before Post")

	sem.Post()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken by Post")
	}
	cancel()
}
