package session

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"huddle/client/internal/rbac"
	"huddle/client/internal/store"
)

type fakeProfiles struct {
	profiles map[string]store.Profile
}

func (f *fakeProfiles) GetProfileByEmail(ctx context.Context, email string) (store.Profile, error) {
	p, ok := f.profiles[email]
	if !ok {
		return store.Profile{}, errors.New("profile not found")
	}
	return p, nil
}

func TestSignIn(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]store.Profile{
		"a@x.com": {ID: "u1", Email: "a@x.com", DisplayName: "alice", Role: "manager", Preference: store.PrefMentions},
	}}

	sess, err := SignIn(context.Background(), profiles, "a@x.com")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.UserID != "u1" || sess.DisplayName != "alice" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Role != rbac.RoleManager {
		t.Fatalf("Role = %q, want manager (normalized)", sess.Role)
	}
	if sess.Preference != store.PrefMentions {
		t.Fatalf("Preference = %q", sess.Preference)
	}
}

func TestSignInDefaults(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]store.Profile{
		"b@x.com": {ID: "u2", Email: "b@x.com", DisplayName: "bob"},
	}}

	sess, err := SignIn(context.Background(), profiles, "b@x.com")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.Role != rbac.RoleViewer {
		t.Fatalf("empty role must normalize to viewer, got %q", sess.Role)
	}
	if sess.Preference != store.PrefAll {
		t.Fatalf("empty preference must default to all, got %q", sess.Preference)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]store.Profile{}}
	if _, err := SignIn(context.Background(), profiles, "nobody@x.com"); err == nil {
		t.Fatal("expected error for unknown email")
	}
}

func setupPresence(t *testing.T, userID string) (*miniredis.Miniredis, *Presence) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewPresenceWithClient(client, userID)
}

func TestPresenceTouchAndExpiry(t *testing.T) {
	mr, p := setupPresence(t, "u1")
	ctx := context.Background()

	if err := p.Touch(ctx); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	online, err := p.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if len(online) != 1 || online[0] != "u1" {
		t.Fatalf("online = %v, want [u1]", online)
	}

	mr.FastForward(presenceTTL + time.Second)
	online, err = p.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("stale presence must expire, got %v", online)
	}
}

func TestPresenceStopClearsImmediately(t *testing.T) {
	_, p := setupPresence(t, "u1")
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	online, err := p.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("Stop must clear the mark, got %v", online)
	}
}

func TestPresenceListsAllOnlineUsers(t *testing.T) {
	mr, p := setupPresence(t, "u1")
	ctx := context.Background()

	other := NewPresenceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "u2")
	if err := p.Touch(ctx); err != nil {
		t.Fatalf("Touch u1: %v", err)
	}
	if err := other.Touch(ctx); err != nil {
		t.Fatalf("Touch u2: %v", err)
	}

	online, err := p.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	sort.Strings(online)
	if len(online) != 2 || online[0] != "u1" || online[1] != "u2" {
		t.Fatalf("online = %v, want [u1 u2]", online)
	}
}
