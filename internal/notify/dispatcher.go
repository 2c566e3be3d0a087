package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"huddle/client/internal/feed"
	"huddle/client/internal/mention"
	"huddle/client/internal/store"
)

const bodyLimit = 140

// Recipient is the signed-in user the dispatcher notifies on behalf of.
type Recipient struct {
	UserID      string
	DisplayName string
	Email       string
	Preference  string
}

// Dispatcher watches thread and reply inserts and raises at most one
// notification per accepted event. Authorship is resolved by author id; the
// display-name snapshot is only consulted for legacy rows without one.
type Dispatcher struct {
	notifier Notifier
	tagNames func() []string

	mu        sync.Mutex
	recipient Recipient

	subs []*feed.Subscription
	wg   sync.WaitGroup
}

// NewDispatcher builds a dispatcher. tagNames supplies the recipient's
// current tag memberships on every decision, so tag changes apply without a
// restart; nil means no tags.
func NewDispatcher(recipient Recipient, notifier Notifier, tagNames func() []string) *Dispatcher {
	if tagNames == nil {
		tagNames = func() []string { return nil }
	}
	return &Dispatcher{recipient: recipient, notifier: notifier, tagNames: tagNames}
}

// SetPreference swaps the recipient's notification preference, applied to
// subsequent events.
func (d *Dispatcher) SetPreference(pref string) {
	d.mu.Lock()
	d.recipient.Preference = pref
	d.mu.Unlock()
}

// Start subscribes to the thread and reply streams and dispatches until the
// context ends or Close is called.
func (d *Dispatcher) Start(ctx context.Context, source feed.Source) error {
	for _, table := range []string{feed.TableThreads, feed.TableReplies} {
		sub, err := source.Subscribe(ctx, table)
		if err != nil {
			d.Close()
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
		d.subs = append(d.subs, sub)
		d.wg.Add(1)
		go func(sub *feed.Subscription) {
			defer d.wg.Done()
			for event := range sub.Events() {
				d.handle(ctx, event)
			}
		}(sub)
	}
	return nil
}

// Close tears down the subscriptions and waits for in-flight dispatches.
func (d *Dispatcher) Close() {
	for _, sub := range d.subs {
		_ = sub.Close()
	}
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, event feed.Event) {
	if event.Op != feed.OpInsert || len(event.Record) == 0 {
		return
	}

	var n Notification
	var authorID, authorName, content string

	switch event.Table {
	case feed.TableThreads:
		var thread store.Thread
		if err := json.Unmarshal(event.Record, &thread); err != nil {
			log.Printf("notify: drop malformed thread record: %v", err)
			return
		}
		authorID, authorName, content = thread.AuthorID, thread.AuthorName, thread.Content
		n = Notification{
			Title:    thread.Title,
			Body:     authorName + ": " + truncate(thread.Content),
			ThreadID: thread.ID,
		}
	case feed.TableReplies:
		var reply store.Reply
		if err := json.Unmarshal(event.Record, &reply); err != nil {
			log.Printf("notify: drop malformed reply record: %v", err)
			return
		}
		authorID, authorName, content = reply.AuthorID, reply.AuthorName, reply.Content
		n = Notification{
			Title:    "New reply",
			Body:     authorName + ": " + truncate(reply.Content),
			ThreadID: reply.ThreadID,
		}
	default:
		return
	}

	d.mu.Lock()
	recipient := d.recipient
	d.mu.Unlock()

	if !shouldNotify(recipient, authorID, authorName, content, d.tagNames()) {
		return
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		log.Printf("notify: deliver %q: %v", n.Title, err)
	}
}

// shouldNotify applies the two gates in order: self-authorship, then the
// recipient's preference.
func shouldNotify(r Recipient, authorID, authorName, content string, tagNames []string) bool {
	if authorID != "" {
		if authorID == r.UserID {
			return false
		}
	} else if strings.EqualFold(authorName, r.DisplayName) {
		return false
	}

	switch r.Preference {
	case store.PrefNone:
		return false
	case store.PrefMentions:
		return mention.HasMention(content, r.DisplayName, r.Email, tagNames)
	default:
		return true
	}
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= bodyLimit {
		return s
	}
	return string(runes[:bodyLimit]) + "…"
}
