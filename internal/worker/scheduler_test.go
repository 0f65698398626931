package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerLoopSurvivesPanickingRun(t *testing.T) {
	s := &Scheduler{name: "scheduler"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	s.loop(ctx, "flaky", 5*time.Millisecond, func(context.Context) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			panic("boom")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.wg.Wait()

	if got := atomic.LoadInt32(&calls); got < 4 {
		t.Fatalf("job should keep running after panic, ran %d times", got)
	}
}
