package kernel

import (
	"sync"
)

// KernelCounters is a point-in-time copy of KernelStats, safe to pass by value.
type KernelCounters struct {
	Ticks          uint64
	Switches       uint64
	DeadlineMisses uint64
}

// KernelStats aggregates scheduler- and tick-level counters for
// observability: total ticks processed, context switches performed, and
// deadline misses detected.
type KernelStats struct {
	mu      sync.Mutex
	counted KernelCounters
}

func (s *KernelStats) incTick() {
	s.mu.Lock()
	s.counted.Ticks++
	s.mu.Unlock()
}

func (s *KernelStats) incSwitch() {
	s.mu.Lock()
	s.counted.Switches++
	s.mu.Unlock()
}

func (s *KernelStats) incDeadlineMiss() {
	s.mu.Lock()
	s.counted.DeadlineMisses++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *KernelStats) Snapshot() KernelCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counted
}

// emaUpdate computes an exponential moving average for per-task execution
// time: new_avg = (new + 7*avg) / 8, i.e. alpha = 1/8.
func emaUpdate(avg, sample uint32) uint32 {
	return (sample + 7*avg) / 8
}
