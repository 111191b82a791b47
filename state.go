package kernel

import (
	"sync/atomic"
)

// KernelState represents the lifecycle state of the Kernel itself (not to be
// confused with TaskState, the per-task {Init,Ready,Running,...} enum).
//
// State Machine:
//
//	StateCreated (0) → StateRunning (1)    [Run()]
//	StateRunning (1) → StateCreated (0)    [Run() with no tasks registered]
//	StateRunning (1) → StateHalted (2)     [Shutdown(), Run's ctx canceled, or fatal stack overflow]
//	StateHalted (2) → (terminal)
type KernelState uint32

const (
	// StateCreated indicates the kernel has been constructed but Run() has not been called.
	StateCreated KernelState = 0
	// StateRunning indicates the tick source and scheduler are active.
	StateRunning KernelState = 1
	// StateHalted indicates the kernel has permanently stopped, either via a
	// clean Shutdown, cancellation of Run's context, or a fatal stack-guard
	// corruption.
	StateHalted KernelState = 2
)

// String returns a human-readable representation of the state.
func (s KernelState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateHalted:
		return "Halted"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine guarding kernel lifecycle
// transitions with pure atomic CAS, avoiding a mutex on a path every
// subsystem call touches.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(StateCreated))
	return s
}

// Load returns the current state atomically.
func (s *fastState) Load() KernelState {
	return KernelState(s.v.Load())
}

// Store atomically stores a new state, for irreversible transitions.
func (s *fastState) Store(state KernelState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *fastState) TryTransition(from, to KernelState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsRunning returns true if the kernel is currently running.
func (s *fastState) IsRunning() bool {
	return s.Load() == StateRunning
}

// IsHalted returns true if the kernel has permanently halted.
func (s *fastState) IsHalted() bool {
	return s.Load() == StateHalted
}
