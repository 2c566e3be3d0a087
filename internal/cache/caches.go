package cache

import (
	"context"

	"huddle/client/internal/feed"
	"huddle/client/internal/store"
)

// Store is the slice of the remote store the caches read from.
type Store interface {
	ListProfiles(ctx context.Context) ([]store.Profile, error)
	ListTags(ctx context.Context) ([]store.Tag, error)
	ListTeams(ctx context.Context) ([]store.Team, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]store.Membership, error)
	ListThreads(ctx context.Context, scope store.ThreadScope) ([]store.Thread, error)
	ListReactions(ctx context.Context) ([]store.Reaction, error)
}

func NewProfiles(s Store) *Cache[store.Profile] {
	return New(feed.TableProfiles, s.ListProfiles)
}

func NewTags(s Store) *Cache[store.Tag] {
	return New(feed.TableTags, s.ListTags)
}

func NewTeams(s Store) *Cache[store.Team] {
	return New(feed.TableTeams, s.ListTeams)
}

func NewMemberships(s Store, userID string) *Cache[store.Membership] {
	return New(feed.TableMemberships, func(ctx context.Context) ([]store.Membership, error) {
		return s.ListMembershipsByUser(ctx, userID)
	})
}

// NewThreads scopes the thread fetch to the caller's current view: one team,
// the union of a non-admin's memberships, or everything for admins. Replies
// arrive eager-loaded with each thread.
func NewThreads(s Store, scope store.ThreadScope) *Cache[store.Thread] {
	return New(feed.TableThreads, func(ctx context.Context) ([]store.Thread, error) {
		return s.ListThreads(ctx, scope)
	})
}

func NewReactions(s Store) *Cache[store.Reaction] {
	return New(feed.TableReactions, s.ListReactions)
}
