package unread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/client/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	latest  map[string]time.Time
	marked  map[string]time.Time
	markErr error
}

func (f *fakeStore) LatestThreadByTeam(ctx context.Context) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.latest))
	for k, v := range f.latest {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) MarkTeamRead(ctx context.Context, teamID, userID string, readAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if f.marked == nil {
		f.marked = make(map[string]time.Time)
	}
	f.marked[teamID] = readAt
	return nil
}

func ts(s string) time.Time {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestComputeNullLastReadIsUnread(t *testing.T) {
	latest := map[string]time.Time{"team-a": ts("2026-08-01T10:00:00Z")}
	memberships := []store.Membership{{TeamID: "team-a", UserID: "u1", LastReadAt: nil}}

	unread := Compute(latest, memberships)
	if _, ok := unread["team-a"]; !ok {
		t.Fatal("team with threads and null last_read_at must be unread")
	}
}

func TestComputeBoundary(t *testing.T) {
	at := ts("2026-08-01T10:00:00Z")
	cases := []struct {
		name     string
		lastRead time.Time
		want     bool
	}{
		{name: "older marker is unread", lastRead: at.Add(-time.Minute), want: true},
		{name: "equal marker is read", lastRead: at, want: false},
		{name: "newer marker is read", lastRead: at.Add(time.Minute), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lastRead := tc.lastRead
			unread := Compute(
				map[string]time.Time{"team-a": at},
				[]store.Membership{{TeamID: "team-a", LastReadAt: &lastRead}},
			)
			if _, ok := unread["team-a"]; ok != tc.want {
				t.Fatalf("unread = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestComputeIgnoresTeamsWithoutThreads(t *testing.T) {
	unread := Compute(map[string]time.Time{}, []store.Membership{{TeamID: "team-a"}})
	if len(unread) != 0 {
		t.Fatalf("expected empty set, got %v", unread)
	}
}

func TestMarkReadIsOptimistic(t *testing.T) {
	fs := &fakeStore{latest: map[string]time.Time{"team-a": ts("2026-08-01T10:00:00Z")}}
	tr := NewTracker(fs, "u1")
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	tr.SetMemberships([]store.Membership{{TeamID: "team-a", UserID: "u1"}})

	if !tr.IsUnread("team-a") {
		t.Fatal("team-a should start unread")
	}
	if err := tr.MarkRead(context.Background(), "team-a"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if tr.IsUnread("team-a") {
		t.Fatal("team-a must leave the unread set immediately")
	}
	if _, ok := fs.marked["team-a"]; !ok {
		t.Fatal("remote read mark not written")
	}
}

func TestMarkReadRollsBackOnFailure(t *testing.T) {
	fs := &fakeStore{
		latest:  map[string]time.Time{"team-a": ts("2026-08-01T10:00:00Z")},
		markErr: errors.New("permission denied"),
	}
	tr := NewTracker(fs, "u1")
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	tr.SetMemberships([]store.Membership{{TeamID: "team-a", UserID: "u1"}})

	if err := tr.MarkRead(context.Background(), "team-a"); err == nil {
		t.Fatal("expected MarkRead error")
	}
	if !tr.IsUnread("team-a") {
		t.Fatal("failed read mark must be rolled back")
	}
}

func TestPendingMarkSurvivesRecompute(t *testing.T) {
	// A feed-triggered refresh between the optimistic mark and the remote
	// confirmation must not resurrect the badge.
	fs := &fakeStore{latest: map[string]time.Time{"team-a": ts("2026-08-01T10:00:00Z")}}
	tr := NewTracker(fs, "u1")
	_ = tr.Refresh(context.Background())
	tr.SetMemberships([]store.Membership{{TeamID: "team-a", UserID: "u1"}})

	if err := tr.MarkRead(context.Background(), "team-a"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tr.IsUnread("team-a") {
		t.Fatal("pending read mark lost on refresh")
	}
}

func TestNewActivityAfterMarkReadIsUnreadAgain(t *testing.T) {
	fs := &fakeStore{latest: map[string]time.Time{"team-a": time.Now().Add(-time.Hour)}}
	tr := NewTracker(fs, "u1")
	_ = tr.Refresh(context.Background())
	tr.SetMemberships([]store.Membership{{TeamID: "team-a", UserID: "u1"}})

	if err := tr.MarkRead(context.Background(), "team-a"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	fs.mu.Lock()
	fs.latest["team-a"] = time.Now().Add(time.Hour)
	fs.mu.Unlock()
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !tr.IsUnread("team-a") {
		t.Fatal("new activity after read mark must be unread")
	}
}
