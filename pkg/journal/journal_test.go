package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vexlab/vexchange/pkg/api"
	"github.com/vexlab/vexchange/pkg/causal"
)

func TestAppendAndRange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")

	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	events := []api.Outbound{
		{EventType: api.EventOrderBookUpdate, LogicalTimestamp: 1, VectorClock: causal.Vector{"engine": 1}},
		{EventType: api.EventTradeExecution, LogicalTimestamp: 2, VectorClock: causal.Vector{"engine": 2}},
		{EventType: api.EventOrderCancelled, LogicalTimestamp: 3, VectorClock: causal.Vector{"engine": 3}},
	}
	for _, env := range events {
		if err := j.Publish(context.Background(), env); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	var got []api.Outbound
	err = j.Range(func(seq uint64, env api.Outbound) error {
		if seq != uint64(len(got)) {
			t.Errorf("seq = %d, want %d", seq, len(got))
		}
		got = append(got, env)
		return nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("replayed %d events, want %d", len(got), len(events))
	}
	for i, env := range got {
		if env.EventType != events[i].EventType || env.LogicalTimestamp != events[i].LogicalTimestamp {
			t.Errorf("event %d = %+v, want %+v", i, env, events[i])
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening resumes the sequence after the last persisted event.
	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	if err := j2.Publish(context.Background(), api.Outbound{EventType: api.EventMarketData, LogicalTimestamp: 4}); err != nil {
		t.Fatalf("Publish after reopen: %v", err)
	}
	var last uint64
	var count int
	if err := j2.Range(func(seq uint64, env api.Outbound) error {
		last = seq
		count++
		return nil
	}); err != nil {
		t.Fatalf("Range after reopen: %v", err)
	}
	if count != 4 || last != 3 {
		t.Errorf("after reopen: count = %d, last seq = %d; want 4, 3", count, last)
	}
}
