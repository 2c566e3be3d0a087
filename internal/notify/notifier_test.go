package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisNotifier(t *testing.T) *RedisNotifier {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisNotifier(client, "u1")
}

func TestRedisNotifierNewestFirst(t *testing.T) {
	n := setupRedisNotifier(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		err := n.Notify(ctx, Notification{Title: fmt.Sprintf("t%d", i), ThreadID: "th1"})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	pending, err := n.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len = %d, want 3", len(pending))
	}
	if pending[0].Title != "t3" || pending[2].Title != "t1" {
		t.Fatalf("order wrong: %v", pending)
	}
	if pending[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt must be stamped on delivery")
	}
}

func TestRedisNotifierCapsBacklog(t *testing.T) {
	n := setupRedisNotifier(t)
	ctx := context.Background()

	for i := 0; i < redisListCap+20; i++ {
		if err := n.Notify(ctx, Notification{Title: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	pending, err := n.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != redisListCap {
		t.Fatalf("len = %d, want %d", len(pending), redisListCap)
	}
	if pending[0].Title != fmt.Sprintf("t%d", redisListCap+19) {
		t.Fatalf("newest = %q", pending[0].Title)
	}
}

func TestRedisNotifierClear(t *testing.T) {
	n := setupRedisNotifier(t)
	ctx := context.Background()

	if err := n.Notify(ctx, Notification{Title: "t1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	pending, err := n.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("len = %d after Clear", len(pending))
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(ctx context.Context, n Notification) error { return f.err }

func TestMultiFallsThroughToNextSurface(t *testing.T) {
	sink := &recordingNotifier{}
	m := Multi{failingNotifier{err: errors.New("down")}, sink}

	if err := m.Notify(context.Background(), Notification{Title: "t"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("fallback not used, count = %d", sink.count())
	}
}

func TestMultiReportsLastErrorWhenAllFail(t *testing.T) {
	last := errors.New("also down")
	m := Multi{failingNotifier{err: errors.New("down")}, failingNotifier{err: last}}

	if err := m.Notify(context.Background(), Notification{Title: "t"}); !errors.Is(err, last) {
		t.Fatalf("err = %v, want %v", err, last)
	}
}
