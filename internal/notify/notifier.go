// Package notify turns thread and reply insert events into user-facing
// notifications, honoring the user's preference and mention matches.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notification is one user-facing alert. ThreadID is the deep-link hint back
// to the originating thread.
type Notification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers a notification on one surface.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi tries each surface in order and stops at the first success. The
// persistent surface goes first; an in-process fallback last.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var lastErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no notification surface configured")
	}
	return lastErr
}

// LogNotifier is the in-process fallback surface.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	log.Printf("notification: %s: %s (thread %s)", n.Title, n.Body, n.ThreadID)
	return nil
}

const redisListCap = 100

// RedisNotifier is the persistent surface: notifications land in a capped
// per-user Redis list so delivery survives the client being backgrounded.
type RedisNotifier struct {
	client *redis.Client
	userID string
}

func NewRedisNotifier(client *redis.Client, userID string) *RedisNotifier {
	return &RedisNotifier{client: client, userID: userID}
}

func (r *RedisNotifier) key() string {
	return "notifications:" + r.userID
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key(), payload)
	pipe.LTrim(ctx, r.key(), 0, redisListCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Pending returns the stored notifications, newest first.
func (r *RedisNotifier) Pending(ctx context.Context) ([]Notification, error) {
	raw, err := r.client.LRange(ctx, r.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	items := make([]Notification, 0, len(raw))
	for _, entry := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(entry), &n); err != nil {
			log.Printf("notify: drop malformed stored notification: %v", err)
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

// Clear drops all stored notifications.
func (r *RedisNotifier) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}
