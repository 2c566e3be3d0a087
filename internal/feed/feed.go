// Package feed delivers change notifications for remote entities. Callers
// treat every event as "something changed, re-fetch"; only the notification
// dispatcher inspects the record payload.
package feed

import (
	"context"
	"encoding/json"
)

// Mutation kinds carried on an event.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entity names used as feed channels.
const (
	TableProfiles    = "profiles"
	TableTeams       = "teams"
	TableMemberships = "memberships"
	TableThreads     = "threads"
	TableReplies     = "replies"
	TableReactions   = "reactions"
	TableTags        = "tags"
)

// Event describes one mutation of one entity row. Record carries the row as
// written, when the publisher had it at hand; it may be empty for deletes.
type Event struct {
	Table  string          `json:"table"`
	Op     string          `json:"op"`
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record,omitempty"`
}

// Publisher emits change events. The store publishes after every mutation,
// standing in for the managed store's own change stream.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Source establishes subscriptions to an entity's mutation stream. Each
// subscription is independently owned; duplicate delivery is allowed and
// callers must tolerate it.
type Source interface {
	Subscribe(ctx context.Context, table string) (*Subscription, error)
}

// Subscription is one live change stream. The events channel closes when the
// subscription ends, either via Close or the subscribing context.
type Subscription struct {
	events <-chan Event
	close  func() error
}

func NewSubscription(events <-chan Event, closeFn func() error) *Subscription {
	return &Subscription{events: events, close: closeFn}
}

// Events returns the stream of change notifications.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() error {
	if s.close == nil {
		return nil
	}
	fn := s.close
	s.close = nil
	return fn()
}
