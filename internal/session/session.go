// Package session holds the signed-in user's identity for the lifetime of
// the client, plus the Redis-backed presence beacon.
package session

import (
	"context"
	"fmt"

	"huddle/client/internal/rbac"
	"huddle/client/internal/store"
)

// Session is the resolved identity of the signed-in user. Role is normalized
// once here; downstream permission checks never see raw role strings.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
	Role        rbac.Role
	Preference  string
}

// ProfileLookup is the slice of the store sign-in needs.
type ProfileLookup interface {
	GetProfileByEmail(ctx context.Context, email string) (store.Profile, error)
}

// SignIn resolves the profile behind an authenticated email into a session.
// Authentication itself happens upstream at the identity provider.
func SignIn(ctx context.Context, s ProfileLookup, email string) (Session, error) {
	profile, err := s.GetProfileByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("sign in %s: %w", email, err)
	}

	pref := profile.Preference
	if pref == "" {
		pref = store.PrefAll
	}

	return Session{
		UserID:      profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Role:        rbac.Normalize(profile.Role),
		Preference:  pref,
	}, nil
}
