// Package unread derives the set of teams with activity the user has not
// seen yet, comparing per-team latest thread activity against each
// membership's last-read marker.
package unread

import (
	"context"
	"log"
	"sync"
	"time"

	"huddle/client/internal/feed"
	"huddle/client/internal/store"
)

// Store is the slice of the remote store the tracker needs.
type Store interface {
	LatestThreadByTeam(ctx context.Context) (map[string]time.Time, error)
	MarkTeamRead(ctx context.Context, teamID, userID string, readAt time.Time) error
}

// Compute returns the unread team set for one aggregate snapshot and one
// membership list. A team is unread iff its latest activity is strictly
// newer than the membership's last-read marker (epoch when never read).
func Compute(latest map[string]time.Time, memberships []store.Membership) map[string]struct{} {
	unread := make(map[string]struct{})
	for _, m := range memberships {
		activity, ok := latest[m.TeamID]
		if !ok {
			continue
		}
		lastRead := time.Time{}
		if m.LastReadAt != nil {
			lastRead = *m.LastReadAt
		}
		if activity.After(lastRead) {
			unread[m.TeamID] = struct{}{}
		}
	}
	return unread
}

// Tracker maintains the unread set reactively. Read marks are optimistic:
// the team leaves the set immediately and is restored if the remote write
// fails.
type Tracker struct {
	store  Store
	userID string

	mu          sync.Mutex
	latest      map[string]time.Time
	memberships []store.Membership
	pending     map[string]time.Time
	unread      map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(s Store, userID string) *Tracker {
	return &Tracker{
		store:   s,
		userID:  userID,
		latest:  make(map[string]time.Time),
		pending: make(map[string]time.Time),
		unread:  make(map[string]struct{}),
	}
}

// Start refreshes the aggregate once and then again on every thread change
// event, until ctx is cancelled or Close is called.
func (t *Tracker) Start(ctx context.Context, source feed.Source) error {
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := source.Subscribe(subCtx, feed.TableThreads)
	if err != nil {
		cancel()
		return err
	}
	t.cancel = cancel
	t.done = make(chan struct{})

	if err := t.Refresh(subCtx); err != nil {
		log.Printf("unread: initial refresh: %v", err)
	}

	go func() {
		defer close(t.done)
		defer sub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := t.Refresh(subCtx); err != nil {
					log.Printf("unread: refresh: %v", err)
				}
			}
		}
	}()
	return nil
}

// Refresh re-runs the latest-activity aggregate and recomputes the set.
func (t *Tracker) Refresh(ctx context.Context) error {
	latest, err := t.store.LatestThreadByTeam(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = latest
	t.recompute()
	return nil
}

// SetMemberships hands the tracker the user's current membership list.
// Called by the owner whenever the membership cache refreshes.
func (t *Tracker) SetMemberships(memberships []store.Membership) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.memberships = memberships
	t.recompute()
}

// recompute rebuilds the unread set under t.mu, folding in pending
// optimistic read marks so a just-read team stays out of the set even before
// the remote write confirms.
func (t *Tracker) recompute() {
	effective := make([]store.Membership, len(t.memberships))
	copy(effective, t.memberships)
	for i, m := range effective {
		if readAt, ok := t.pending[m.TeamID]; ok {
			if m.LastReadAt == nil || readAt.After(*m.LastReadAt) {
				at := readAt
				effective[i].LastReadAt = &at
			}
		}
	}
	t.unread = Compute(t.latest, effective)
}

// Unread returns the set of team ids with unseen activity.
func (t *Tracker) Unread() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]struct{}, len(t.unread))
	for id := range t.unread {
		out[id] = struct{}{}
	}
	return out
}

func (t *Tracker) IsUnread(teamID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.unread[teamID]
	return ok
}

// MarkRead advances the user's read marker for a team. The team drops out of
// the unread set immediately; if the remote write fails the optimistic mark
// is rolled back and the error returned.
func (t *Tracker) MarkRead(ctx context.Context, teamID string) error {
	now := time.Now()

	t.mu.Lock()
	t.pending[teamID] = now
	t.recompute()
	t.mu.Unlock()

	if err := t.store.MarkTeamRead(ctx, teamID, t.userID, now); err != nil {
		t.mu.Lock()
		delete(t.pending, teamID)
		t.recompute()
		t.mu.Unlock()
		return err
	}
	return nil
}

// Close tears down the feed subscription.
func (t *Tracker) Close() {
	if t.cancel != nil {
		t.cancel()
	}
	if t.done != nil {
		<-t.done
	}
}
