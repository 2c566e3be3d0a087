package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestFeed(t *testing.T) *RedisFeed {
	t.Helper()
	s := miniredis.RunT(t)
	f, err := NewRedisFeed("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisFeed failed: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func waitEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed before event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
	}
	return Event{}
}

func TestPublishSubscribe(t *testing.T) {
	f := setupTestFeed(t)
	ctx := context.Background()

	sub, err := f.Subscribe(ctx, TableThreads)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	record, _ := json.Marshal(map[string]string{"id": "thr_1", "title": "standup"})
	sent := Event{Table: TableThreads, Op: OpInsert, ID: "thr_1", Record: record}
	if err := f.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := waitEvent(t, sub)
	if got.Table != TableThreads || got.Op != OpInsert || got.ID != "thr_1" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if string(got.Record) != string(record) {
		t.Fatalf("record not carried through: %s", got.Record)
	}
}

func TestSubscriptionsAreIndependent(t *testing.T) {
	f := setupTestFeed(t)
	ctx := context.Background()

	first, err := f.Subscribe(ctx, TableReplies)
	if err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	defer first.Close()
	second, err := f.Subscribe(ctx, TableReplies)
	if err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}
	defer second.Close()

	if err := f.Publish(ctx, Event{Table: TableReplies, Op: OpInsert, ID: "rpl_1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got := waitEvent(t, first); got.ID != "rpl_1" {
		t.Fatalf("first subscriber got %+v", got)
	}
	if got := waitEvent(t, second); got.ID != "rpl_1" {
		t.Fatalf("second subscriber got %+v", got)
	}
}

func TestTablesDoNotCross(t *testing.T) {
	f := setupTestFeed(t)
	ctx := context.Background()

	sub, err := f.Subscribe(ctx, TableTeams)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := f.Publish(ctx, Event{Table: TableThreads, Op: OpInsert, ID: "thr_9"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case event, ok := <-sub.Events():
		if ok {
			t.Fatalf("teams subscriber received thread event: %+v", event)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseEndsStream(t *testing.T) {
	f := setupTestFeed(t)

	sub, err := f.Subscribe(context.Background(), TableThreads)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op.
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel did not close after Close")
	}
}

func TestContextCancelEndsStream(t *testing.T) {
	f := setupTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := f.Subscribe(ctx, TableThreads)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel did not close after cancel")
	}
}
