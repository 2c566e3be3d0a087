package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presencePrefix = "presence:"
	presenceTTL    = 60 * time.Second
	heartbeatEvery = 20 * time.Second
)

// Presence marks the signed-in user online via a TTL'd Redis key. The key
// expires on its own when the client dies without a clean shutdown.
type Presence struct {
	client *redis.Client
	userID string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPresence builds a presence beacon from a Redis URL.
func NewPresence(redisURL, userID string) (*Presence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewPresenceWithClient(client, userID), nil
}

// NewPresenceWithClient builds a presence beacon from an existing client.
func NewPresenceWithClient(client *redis.Client, userID string) *Presence {
	return &Presence{client: client, userID: userID}
}

func (p *Presence) key() string {
	return presencePrefix + p.userID
}

// Start marks the user online and keeps the mark fresh until the context
// ends or Stop is called.
func (p *Presence) Start(ctx context.Context) error {
	if err := p.Touch(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Missed beats are fine, the TTL absorbs them.
				_ = p.Touch(ctx)
			}
		}
	}()
	return nil
}

// Touch refreshes the online mark for one TTL window.
func (p *Presence) Touch(ctx context.Context) error {
	if err := p.client.Set(ctx, p.key(), time.Now().Format(time.RFC3339), presenceTTL).Err(); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

// Stop ends the heartbeat and removes the online mark immediately.
func (p *Presence) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if err := p.client.Del(ctx, p.key()).Err(); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	return nil
}

// Online lists the user ids currently marked online.
func (p *Presence) Online(ctx context.Context) ([]string, error) {
	var ids []string
	iter := p.client.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), presencePrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence: %w", err)
	}
	return ids, nil
}
