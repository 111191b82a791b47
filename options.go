// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package kernel

import "time"

// kernelOptions holds configuration options for Kernel creation.
type kernelOptions struct {
	tickPeriod   time.Duration
	taskCapacity int
	maxPools     int
	opsPerTick   uint16
	logger       Logger
	onTick       func(tick uint32)
}

// --- Kernel Options ---

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions)
}

// optionFunc implements Option.
type optionFunc func(*kernelOptions)

func (f optionFunc) applyKernel(opts *kernelOptions) { f(opts) }

// WithTickPeriod sets the wall-clock period of the tick source. Defaults to
// 1ms (1kHz).
func WithTickPeriod(period time.Duration) Option {
	return optionFunc(func(opts *kernelOptions) {
		if period > 0 {
			opts.tickPeriod = period
		}
	})
}

// WithTaskCapacity sets the initial capacity hint for the task table. Tasks
// are still statically registered via CreateTask; this only pre-sizes the
// backing slice used for the task-list snapshot.
func WithTaskCapacity(n int) Option {
	return optionFunc(func(opts *kernelOptions) {
		if n > 0 {
			opts.taskCapacity = n
		}
	})
}

// WithMaxPools sets the maximum number of memory pools that may register
// with the kernel's per-tick refill. Defaults to 4.
func WithMaxPools(n int) Option {
	return optionFunc(func(opts *kernelOptions) {
		if n > 0 {
			opts.maxPools = n
		}
	})
}

// WithDefaultOpsPerTick sets the default per-tick operation budget used by
// NewPool when its caller passes 0 for opsPerTick.
func WithDefaultOpsPerTick(n uint16) Option {
	return optionFunc(func(opts *kernelOptions) {
		if n > 0 {
			opts.opsPerTick = n
		}
	})
}

// WithLogger attaches a structured Logger. Defaults to NoOpLogger.
func WithLogger(l Logger) Option {
	return optionFunc(func(opts *kernelOptions) {
		if l != nil {
			opts.logger = l
		}
	})
}

// WithOnTick registers a hook invoked at the end of every tick, outside the
// critical section.
func WithOnTick(fn func(tick uint32)) Option {
	return optionFunc(func(opts *kernelOptions) {
		opts.onTick = fn
	})
}

// resolveOptions applies Option instances to kernelOptions.
func resolveOptions(opts []Option) *kernelOptions {
	cfg := &kernelOptions{
		tickPeriod:   time.Millisecond,
		taskCapacity: 8,
		maxPools:     4,
		opsPerTick:   64,
		logger:       NoOpLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyKernel(cfg)
	}
	return cfg
}
