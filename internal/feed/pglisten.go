package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
)

var channelName = regexp.MustCompile(`^[a-z_]+$`)

// PgFeed implements Publisher and Source over Postgres LISTEN/NOTIFY, for
// single-box deployments that run without Redis. Each subscription holds its
// own dedicated connection; the publisher shares one.
type PgFeed struct {
	url string

	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPgFeed opens the publishing connection.
func NewPgFeed(ctx context.Context, databaseURL string) (*PgFeed, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect for notify: %w", err)
	}
	return &PgFeed{url: databaseURL, conn: conn}, nil
}

func channelFor(table string) (string, error) {
	if !channelName.MatchString(table) {
		return "", fmt.Errorf("invalid feed table %q", table)
	}
	return "huddle_" + table, nil
}

// Publish emits the event via pg_notify on the entity's channel.
func (f *PgFeed) Publish(ctx context.Context, event Event) error {
	channel, err := channelFor(event.Table)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.conn.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a dedicated listening connection for one entity.
func (f *PgFeed) Subscribe(ctx context.Context, table string) (*Subscription, error) {
	channel, err := channelFor(table)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("connect for listen: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for {
			notification, err := conn.WaitForNotification(ctx)
			if err != nil {
				// Connection closed or context cancelled.
				_ = conn.Close(context.Background())
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
				log.Printf("feed: drop malformed notification on %s: %v", channel, err)
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				_ = conn.Close(context.Background())
				return
			}
		}
	}()

	return NewSubscription(events, func() error {
		return conn.Close(context.Background())
	}), nil
}

// Close releases the publishing connection.
func (f *PgFeed) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn.Close(ctx)
}
