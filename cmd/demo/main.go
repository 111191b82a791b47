// Command demo wires up two periodic tasks and a mutex to exercise the
// kernel's EDF scheduler and deadline-inheritance path end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	kernel "github.com/smartos-go/kernel"
)

func main() {
	k := kernel.New(
		kernel.WithTickPeriod(time.Millisecond),
		kernel.WithLogger(kernel.NewTextLogger(kernel.LevelInfo, os.Stdout)),
		kernel.WithOnTick(func(tick uint32) {
			if tick%1000 == 0 {
				fmt.Printf("heartbeat: tick=%d\n", tick)
			}
		}),
	)

	m, err := kernel.NewMutex(k)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mutex init:", err)
		os.Exit(1)
	}

	var producer, consumer kernel.Task
	producer.Name = "producer"
	consumer.Name = "consumer"
	if err := k.CreateTask(&producer, producerBody, m, kernel.TaskConfig{
		Period: 10, RelativeDeadline: 10, StackBudget: 4096,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "create producer:", err)
		os.Exit(1)
	}
	if err := k.CreateTask(&consumer, consumerBody, m, kernel.TaskConfig{
		Period: 4, RelativeDeadline: 4, StackBudget: 4096,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "create consumer:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := k.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, "kernel halted:", err)
		os.Exit(1)
	}

	counters := k.Stats()
	fmt.Printf("ticks=%d switches=%d misses=%d\n", counters.Ticks, counters.Switches, counters.DeadlineMisses)
	for _, ts := range k.TaskListSnapshot() {
		fmt.Printf("task %-10s switches=%-6d avg=%-3d max=%-3d misses=%-3d minFreeStack=%d\n",
			ts.Name, ts.SwitchCount, ts.AvgExecTicks, ts.MaxExecTicks, ts.DeadlineMisses, ts.MinFreeStack)
	}
}

func producerBody(t *kernel.Task, arg any) {
	m := arg.(*kernel.Mutex)
	for {
		m.Lock(t)
		t.ReportStackUsage(256)
		m.Unlock(t)
		t.Delay(t.Period())
	}
}

func consumerBody(t *kernel.Task, arg any) {
	m := arg.(*kernel.Mutex)
	for {
		m.Lock(t)
		t.ReportStackUsage(192)
		m.Unlock(t)
		t.Delay(t.Period())
	}
}
