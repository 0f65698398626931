package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/wldmarket/internal/config"

	"github.com/hibiken/asynq"
)

func TestNewOrderAutoDeliverTask(t *testing.T) {
	task, err := NewOrderAutoDeliverTask(OrderAutoDeliverPayload{OrderID: 7, ShippedVersion: 4})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskOrderAutoDeliver {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload OrderAutoDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.OrderID != 7 || payload.ShippedVersion != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueOrderSettle(OrderSettlePayload{OrderID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}
}

func TestIgnoreDuplicate(t *testing.T) {
	if err := ignoreDuplicate(fmt.Errorf("wrap: %w", asynq.ErrTaskIDConflict)); err != nil {
		t.Fatalf("task id conflict should be ignored: %v", err)
	}
	boom := errors.New("boom")
	if err := ignoreDuplicate(boom); !errors.Is(err, boom) {
		t.Fatalf("unexpected error passthrough: %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 || cfg.Queues[CriticalQueue] != 2 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
