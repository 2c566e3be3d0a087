// Package app is the client facade: it owns the session, the entity caches,
// the unread tracker, and the notification dispatcher, and exposes the
// mutation surface with optimistic apply-then-confirm semantics.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"huddle/client/internal/attach"
	"huddle/client/internal/cache"
	"huddle/client/internal/feed"
	"huddle/client/internal/notify"
	"huddle/client/internal/rbac"
	"huddle/client/internal/search"
	"huddle/client/internal/session"
	"huddle/client/internal/store"
	"huddle/client/internal/unread"
	"huddle/client/internal/util"
)

type dataStore interface {
	ListProfiles(context.Context) ([]store.Profile, error)
	ListTags(context.Context) ([]store.Tag, error)
	ListTeams(context.Context) ([]store.Team, error)
	ListMembershipsByUser(context.Context, string) ([]store.Membership, error)
	ListThreads(context.Context, store.ThreadScope) ([]store.Thread, error)
	ListReactions(context.Context) ([]store.Reaction, error)

	GetProfile(context.Context, string) (store.Profile, error)
	UpdateProfile(context.Context, store.Profile) error

	InsertTeam(context.Context, store.Team) error
	UpdateTeam(context.Context, store.Team) error
	DeleteTeam(context.Context, string) error

	UpsertMemberships(context.Context, []store.Membership) error
	MarkTeamRead(context.Context, string, string, time.Time) error
	LatestThreadByTeam(context.Context) (map[string]time.Time, error)

	GetThread(context.Context, string) (store.Thread, error)
	InsertThread(context.Context, store.Thread) error
	UpdateThreadStatus(context.Context, string, string, string, *time.Time) error
	UpdateThreadPinned(context.Context, string, bool) error
	UpdateThreadContent(context.Context, string, string, string) error
	DeleteThread(context.Context, string) error

	InsertReply(context.Context, store.Reply) error
	DeleteReply(context.Context, string) error

	InsertReaction(context.Context, store.Reaction) error
	DeleteReaction(context.Context, string) error

	TagNamesForUser(context.Context, string) ([]string, error)
}

// fetchStore bounds every snapshot fetch with a timeout so a hung remote
// cannot wedge a refetch forever. Mutations keep the caller's context.
type fetchStore struct {
	dataStore
	timeout time.Duration
}

func (s fetchStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s fetchStore) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListProfiles(ctx)
}

func (s fetchStore) ListTags(ctx context.Context) ([]store.Tag, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListTags(ctx)
}

func (s fetchStore) ListTeams(ctx context.Context) ([]store.Team, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListTeams(ctx)
}

func (s fetchStore) ListMembershipsByUser(ctx context.Context, userID string) ([]store.Membership, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListMembershipsByUser(ctx, userID)
}

func (s fetchStore) ListThreads(ctx context.Context, scope store.ThreadScope) ([]store.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListThreads(ctx, scope)
}

func (s fetchStore) ListReactions(ctx context.Context) ([]store.Reaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.ListReactions(ctx)
}

func (s fetchStore) LatestThreadByTeam(ctx context.Context) (map[string]time.Time, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dataStore.LatestThreadByTeam(ctx)
}

// threadPatch is an optimistic local override on one thread, held until the
// server row catches up through the feed.
type threadPatch struct {
	status      *string
	pinned      *bool
	completedBy string
	completedAt *time.Time
}

func (p threadPatch) applied(t store.Thread) bool {
	if p.status != nil && t.Status != *p.status {
		return false
	}
	if p.pinned != nil && t.Pinned != *p.pinned {
		return false
	}
	return true
}

func (p threadPatch) apply(t store.Thread) store.Thread {
	if p.status != nil {
		t.Status = *p.status
		t.CompletedBy = p.completedBy
		t.CompletedAt = p.completedAt
	}
	if p.pinned != nil {
		t.Pinned = *p.pinned
	}
	return t
}

// Client is the top-level handle the UI talks to. One per signed-in user.
type Client struct {
	store    dataStore
	source   feed.Source
	notifier notify.Notifier
	search   *search.Service
	attach   *attach.Store

	profiles    *cache.Cache[store.Profile]
	tags        *cache.Cache[store.Tag]
	teams       *cache.Cache[store.Team]
	memberships *cache.Cache[store.Membership]
	threads     *cache.Cache[store.Thread]
	reactions   *cache.Cache[store.Reaction]
	tracker     *unread.Tracker
	dispatcher  *notify.Dispatcher

	threadLimit  int
	fetchTimeout time.Duration

	mu          sync.Mutex
	sess        session.Session
	threadPatch map[string]threadPatch
	rolePatch   map[string]string

	tagMu      sync.Mutex
	tagNamesAt time.Time
	tagCache   []string
}

func NewClient(sess session.Session, s dataStore, source feed.Source, notifier notify.Notifier) *Client {
	return &Client{
		store:       s,
		source:      source,
		notifier:    notifier,
		sess:        sess,
		threadPatch: make(map[string]threadPatch),
		rolePatch:   make(map[string]string),
	}
}

// WithLimits tunes the thread snapshot size and the per-fetch timeout. Zero
// values keep the store defaults and unbounded fetches.
func (c *Client) WithLimits(threadLimit int, fetchTimeout time.Duration) *Client {
	c.threadLimit = threadLimit
	c.fetchTimeout = fetchTimeout
	return c
}

// WithSearch enables full-text search through the facade.
func (c *Client) WithSearch(s *search.Service) *Client {
	c.search = s
	return c
}

// WithAttachments enables the presigned-URL attachment boundary.
func (c *Client) WithAttachments(a *attach.Store) *Client {
	c.attach = a
	return c
}

// Start brings the caches, unread tracker, and dispatcher online. The thread
// scope is fixed at start: everything for admins, the union of the user's
// teams otherwise.
func (c *Client) Start(ctx context.Context) error {
	sess := c.Session()

	scope := store.ThreadScope{}
	if sess.Role != rbac.RoleAdmin {
		memberships, err := c.store.ListMembershipsByUser(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("load memberships: %w", err)
		}
		ids := make([]string, 0, len(memberships))
		for _, m := range memberships {
			ids = append(ids, m.TeamID)
		}
		scope.TeamIDs = ids
	}
	scope.Limit = c.threadLimit

	fetcher := fetchStore{dataStore: c.store, timeout: c.fetchTimeout}
	c.profiles = cache.NewProfiles(fetcher)
	c.tags = cache.NewTags(fetcher)
	c.teams = cache.NewTeams(fetcher)
	c.memberships = cache.NewMemberships(fetcher, sess.UserID)
	c.threads = cache.NewThreads(fetcher, scope)
	c.reactions = cache.NewReactions(fetcher)

	caches := []interface {
		Start(context.Context, feed.Source) error
	}{c.profiles, c.tags, c.teams, c.memberships, c.threads, c.reactions}
	for _, entry := range caches {
		if err := entry.Start(ctx, c.source); err != nil {
			return fmt.Errorf("start cache: %w", err)
		}
	}

	c.tracker = unread.NewTracker(fetcher, sess.UserID)
	if err := c.tracker.Start(ctx, c.source); err != nil {
		return fmt.Errorf("start unread tracker: %w", err)
	}
	c.tracker.SetMemberships(c.memberships.Snapshot().Data)

	c.dispatcher = notify.NewDispatcher(notify.Recipient{
		UserID:      sess.UserID,
		DisplayName: sess.DisplayName,
		Email:       sess.Email,
		Preference:  sess.Preference,
	}, c.notifier, c.tagNames)
	if err := c.dispatcher.Start(ctx, c.source); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	return nil
}

// Close tears everything down in reverse start order.
func (c *Client) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	if c.tracker != nil {
		c.tracker.Close()
	}
	for _, entry := range []interface{ Close() }{
		c.reactions, c.threads, c.memberships, c.teams, c.tags, c.profiles,
	} {
		if entry != nil {
			entry.Close()
		}
	}
}

// Session returns the signed-in identity.
func (c *Client) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Client) Profiles() cache.State[store.Profile]   { return c.profiles.Snapshot() }
func (c *Client) Tags() cache.State[store.Tag]           { return c.tags.Snapshot() }
func (c *Client) Teams() cache.State[store.Team]         { return c.teams.Snapshot() }
func (c *Client) Reactions() cache.State[store.Reaction] { return c.reactions.Snapshot() }

// Threads returns the thread snapshot with pending optimistic patches laid
// over it. A patch is dropped as soon as the server row reflects it.
func (c *Client) Threads() cache.State[store.Thread] {
	st := c.threads.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.threadPatch) == 0 {
		return st
	}
	out := make([]store.Thread, len(st.Data))
	copy(out, st.Data)
	for i := range out {
		p, ok := c.threadPatch[out[i].ID]
		if !ok {
			continue
		}
		if p.applied(out[i]) {
			delete(c.threadPatch, out[i].ID)
			continue
		}
		out[i] = p.apply(out[i])
	}
	st.Data = out
	return st
}

// Memberships returns the user's membership snapshot with pending optimistic
// role changes applied.
func (c *Client) Memberships() cache.State[store.Membership] {
	st := c.memberships.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rolePatch) == 0 {
		return st
	}
	out := make([]store.Membership, len(st.Data))
	copy(out, st.Data)
	for i := range out {
		role, ok := c.rolePatch[out[i].TeamID]
		if !ok {
			continue
		}
		if out[i].Role == role {
			delete(c.rolePatch, out[i].TeamID)
			continue
		}
		out[i].Role = role
	}
	st.Data = out
	return st
}

// AccessFor resolves the user's capabilities in one team context.
func (c *Client) AccessFor(teamID string) rbac.Access {
	sess := c.Session()
	data := c.Memberships().Data
	memberships := make([]rbac.Membership, 0, len(data))
	for _, m := range data {
		memberships = append(memberships, rbac.Membership{
			TeamID: m.TeamID,
			Role:   rbac.Normalize(m.Role),
		})
	}
	return rbac.Resolve(sess.Role, teamID, memberships)
}

// Unread returns the set of team ids with activity after the read marker.
func (c *Client) Unread() map[string]struct{} { return c.tracker.Unread() }

func (c *Client) IsUnread(teamID string) bool { return c.tracker.IsUnread(teamID) }

// MarkTeamRead clears a team's unread state optimistically; the tracker
// restores it if the remote write fails.
func (c *Client) MarkTeamRead(ctx context.Context, teamID string) error {
	if err := c.tracker.MarkRead(ctx, teamID); err != nil {
		return domainError(CodeUnavailable, "could not save read state", err.Error())
	}
	return nil
}

func (c *Client) findThread(ctx context.Context, threadID string) (store.Thread, error) {
	for _, t := range c.Threads().Data {
		if t.ID == threadID {
			return t, nil
		}
	}
	return c.store.GetThread(ctx, threadID)
}

// CreateThread posts a new thread. Viewers cannot post.
func (c *Client) CreateThread(ctx context.Context, teamID, title, content string, attachments []store.Attachment) (store.Thread, error) {
	if title == "" {
		return store.Thread{}, domainError(CodeInvalid, "thread title required", nil)
	}
	access := c.AccessFor(teamID)
	if access.Role == rbac.RoleViewer {
		return store.Thread{}, domainError(CodeForbidden, "viewers cannot post threads", nil)
	}

	sess := c.Session()
	now := time.Now()
	thread := store.Thread{
		ID:          util.NewID("thr"),
		TeamID:      teamID,
		Title:       title,
		Content:     content,
		AuthorID:    sess.UserID,
		AuthorName:  sess.DisplayName,
		Status:      store.StatusPending,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.InsertThread(ctx, thread); err != nil {
		return store.Thread{}, domainError(CodeUnavailable, "could not post thread", err.Error())
	}
	if c.search != nil {
		c.search.IndexThread(search.ThreadRecord{
			ID: thread.ID, Title: thread.Title, Content: thread.Content,
			TeamID: thread.TeamID, Status: thread.Status,
		})
	}
	return thread, nil
}

// EditThread rewrites title and content. Authors only.
func (c *Client) EditThread(ctx context.Context, threadID, title, content string) error {
	if title == "" {
		return domainError(CodeInvalid, "thread title required", nil)
	}
	thread, err := c.findThread(ctx, threadID)
	if err != nil {
		return domainError(CodeNotFound, "thread not found", err.Error())
	}
	if thread.AuthorID != c.Session().UserID {
		return domainError(CodeForbidden, "only the author can edit a thread", nil)
	}
	if err := c.store.UpdateThreadContent(ctx, threadID, title, content); err != nil {
		return domainError(CodeUnavailable, "could not save thread", err.Error())
	}
	if c.search != nil {
		c.search.IndexThread(search.ThreadRecord{
			ID: threadID, Title: title, Content: content,
			TeamID: thread.TeamID, Status: thread.Status,
		})
	}
	return nil
}

// DeleteThread removes a thread. Authors and team editors.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	thread, err := c.findThread(ctx, threadID)
	if err != nil {
		return domainError(CodeNotFound, "thread not found", err.Error())
	}
	access := c.AccessFor(thread.TeamID)
	if thread.AuthorID != c.Session().UserID && !access.CanEdit {
		return domainError(CodeForbidden, "not allowed to delete this thread", nil)
	}
	if err := c.store.DeleteThread(ctx, threadID); err != nil {
		return domainError(CodeUnavailable, "could not delete thread", err.Error())
	}
	if c.search != nil {
		c.search.DeleteThread(threadID)
	}
	return nil
}

// ToggleThreadStatus flips pending/completed, optimistically. Members of the
// team and the author may complete; viewers may not.
func (c *Client) ToggleThreadStatus(ctx context.Context, threadID string) error {
	thread, err := c.findThread(ctx, threadID)
	if err != nil {
		return domainError(CodeNotFound, "thread not found", err.Error())
	}
	sess := c.Session()
	access := c.AccessFor(thread.TeamID)
	if access.Role == rbac.RoleViewer && thread.AuthorID != sess.UserID {
		return domainError(CodeForbidden, "not allowed to change thread status", nil)
	}

	status := store.StatusCompleted
	completedBy := sess.UserID
	var completedAt *time.Time
	if thread.Status == store.StatusCompleted {
		status = store.StatusPending
		completedBy = ""
	} else {
		now := time.Now()
		completedAt = &now
	}

	c.mu.Lock()
	patch := c.threadPatch[threadID]
	prev := patch
	patch.status = &status
	patch.completedBy = completedBy
	patch.completedAt = completedAt
	c.threadPatch[threadID] = patch
	c.mu.Unlock()

	if err := c.store.UpdateThreadStatus(ctx, threadID, status, completedBy, completedAt); err != nil {
		c.revertPatch(threadID, prev)
		return domainError(CodeUnavailable, "could not change thread status", err.Error())
	}
	return nil
}

// ToggleThreadPinned flips the pin, optimistically. Editors only.
func (c *Client) ToggleThreadPinned(ctx context.Context, threadID string) error {
	thread, err := c.findThread(ctx, threadID)
	if err != nil {
		return domainError(CodeNotFound, "thread not found", err.Error())
	}
	if !c.AccessFor(thread.TeamID).CanEdit {
		return domainError(CodeForbidden, "only managers can pin threads", nil)
	}

	pinned := !thread.Pinned

	c.mu.Lock()
	patch := c.threadPatch[threadID]
	prev := patch
	patch.pinned = &pinned
	c.threadPatch[threadID] = patch
	c.mu.Unlock()

	if err := c.store.UpdateThreadPinned(ctx, threadID, pinned); err != nil {
		c.revertPatch(threadID, prev)
		return domainError(CodeUnavailable, "could not pin thread", err.Error())
	}
	return nil
}

// revertPatch restores the pre-mutation patch state for one thread.
func (c *Client) revertPatch(threadID string, prev threadPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev.status == nil && prev.pinned == nil {
		delete(c.threadPatch, threadID)
		return
	}
	c.threadPatch[threadID] = prev
}

// CreateReply posts a reply to a thread. Viewers cannot post.
func (c *Client) CreateReply(ctx context.Context, threadID, content string, attachments []store.Attachment) (store.Reply, error) {
	if content == "" {
		return store.Reply{}, domainError(CodeInvalid, "reply content required", nil)
	}
	thread, err := c.findThread(ctx, threadID)
	if err != nil {
		return store.Reply{}, domainError(CodeNotFound, "thread not found", err.Error())
	}
	if c.AccessFor(thread.TeamID).Role == rbac.RoleViewer {
		return store.Reply{}, domainError(CodeForbidden, "viewers cannot reply", nil)
	}

	sess := c.Session()
	now := time.Now()
	reply := store.Reply{
		ID:          util.NewID("rpl"),
		ThreadID:    threadID,
		Content:     content,
		AuthorID:    sess.UserID,
		AuthorName:  sess.DisplayName,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.InsertReply(ctx, reply); err != nil {
		return store.Reply{}, domainError(CodeUnavailable, "could not post reply", err.Error())
	}
	if c.search != nil {
		c.search.IndexReply(search.ReplyRecord{
			ID: reply.ID, Content: reply.Content,
			ThreadID: threadID, TeamID: thread.TeamID,
		})
	}
	return reply, nil
}

// DeleteReply removes a reply. Authors and team editors.
func (c *Client) DeleteReply(ctx context.Context, replyID string) error {
	var owner store.Thread
	var reply *store.Reply
	for _, t := range c.Threads().Data {
		for i := range t.Replies {
			if t.Replies[i].ID == replyID {
				owner = t
				reply = &t.Replies[i]
				break
			}
		}
	}
	if reply == nil {
		return domainError(CodeNotFound, "reply not found", nil)
	}
	if reply.AuthorID != c.Session().UserID && !c.AccessFor(owner.TeamID).CanEdit {
		return domainError(CodeForbidden, "not allowed to delete this reply", nil)
	}
	if err := c.store.DeleteReply(ctx, replyID); err != nil {
		return domainError(CodeUnavailable, "could not delete reply", err.Error())
	}
	if c.search != nil {
		c.search.DeleteReply(replyID)
	}
	return nil
}

// AddReaction attaches an emoji to exactly one of a thread or a reply.
func (c *Client) AddReaction(ctx context.Context, emoji, threadID, replyID string) (store.Reaction, error) {
	if emoji == "" {
		return store.Reaction{}, domainError(CodeInvalid, "emoji required", nil)
	}
	if (threadID == "") == (replyID == "") {
		return store.Reaction{}, domainError(CodeInvalid, "reaction must target exactly one of thread or reply", nil)
	}

	reaction := store.Reaction{
		ID:     util.NewID("rct"),
		Emoji:  emoji,
		UserID: c.Session().UserID,
	}
	if threadID != "" {
		reaction.ThreadID = &threadID
	} else {
		reaction.ReplyID = &replyID
	}
	if err := c.store.InsertReaction(ctx, reaction); err != nil {
		return store.Reaction{}, domainError(CodeUnavailable, "could not add reaction", err.Error())
	}
	return reaction, nil
}

// RemoveReaction deletes one of the user's own reactions.
func (c *Client) RemoveReaction(ctx context.Context, reactionID string) error {
	sess := c.Session()
	for _, r := range c.Reactions().Data {
		if r.ID != reactionID {
			continue
		}
		if r.UserID != sess.UserID && sess.Role != rbac.RoleAdmin {
			return domainError(CodeForbidden, "cannot remove someone else's reaction", nil)
		}
		if err := c.store.DeleteReaction(ctx, reactionID); err != nil {
			return domainError(CodeUnavailable, "could not remove reaction", err.Error())
		}
		return nil
	}
	return domainError(CodeNotFound, "reaction not found", nil)
}

// ChangeMemberRoles bulk-assigns one role to several members of a team,
// optimistically for the caller's own row. Editors only; granting admin
// requires admin.
func (c *Client) ChangeMemberRoles(ctx context.Context, teamID string, userIDs []string, role string) error {
	normalized := rbac.Normalize(role)
	if string(normalized) != role {
		return domainError(CodeInvalid, "unknown role", role)
	}
	access := c.AccessFor(teamID)
	if !access.CanEdit {
		return domainError(CodeForbidden, "only managers can change roles", nil)
	}
	if normalized == rbac.RoleAdmin && !access.IsAdmin {
		return domainError(CodeForbidden, "only admins can grant admin", nil)
	}
	if len(userIDs) == 0 {
		return nil
	}

	sess := c.Session()
	ownRowChanged := false
	items := make([]store.Membership, 0, len(userIDs))
	for _, userID := range userIDs {
		items = append(items, store.Membership{TeamID: teamID, UserID: userID, Role: role})
		if userID == sess.UserID {
			ownRowChanged = true
		}
	}

	var prevRole string
	var hadPatch bool
	if ownRowChanged {
		c.mu.Lock()
		prevRole, hadPatch = c.rolePatch[teamID]
		c.rolePatch[teamID] = role
		c.mu.Unlock()
	}

	if err := c.store.UpsertMemberships(ctx, items); err != nil {
		if ownRowChanged {
			c.mu.Lock()
			if hadPatch {
				c.rolePatch[teamID] = prevRole
			} else {
				delete(c.rolePatch, teamID)
			}
			c.mu.Unlock()
		}
		return domainError(CodeUnavailable, "could not change roles", err.Error())
	}
	return nil
}

// SetPreference changes the user's notification preference and applies it to
// the running dispatcher.
func (c *Client) SetPreference(ctx context.Context, pref string) error {
	switch pref {
	case store.PrefAll, store.PrefMentions, store.PrefNone:
	default:
		return domainError(CodeInvalid, "unknown notification preference", pref)
	}

	sess := c.Session()
	profile, err := c.store.GetProfile(ctx, sess.UserID)
	if err != nil {
		return domainError(CodeUnavailable, "could not load profile", err.Error())
	}
	profile.Preference = pref
	if err := c.store.UpdateProfile(ctx, profile); err != nil {
		return domainError(CodeUnavailable, "could not save preference", err.Error())
	}

	c.mu.Lock()
	c.sess.Preference = pref
	c.mu.Unlock()
	if c.dispatcher != nil {
		c.dispatcher.SetPreference(pref)
	}
	return nil
}

// CreateTeam creates a team or, with ParentID set, a channel under an
// existing team. Top-level teams are admin-only; channels need edit rights on
// the parent.
func (c *Client) CreateTeam(ctx context.Context, name, icon string, parentID *string) (store.Team, error) {
	if name == "" {
		return store.Team{}, domainError(CodeInvalid, "team name required", nil)
	}
	if parentID == nil {
		if !c.AccessFor("").IsAdmin {
			return store.Team{}, domainError(CodeForbidden, "only admins can create teams", nil)
		}
	} else if !c.AccessFor(*parentID).CanEdit {
		return store.Team{}, domainError(CodeForbidden, "only managers can create channels", nil)
	}

	team := store.Team{
		ID:       util.NewID("team"),
		Name:     name,
		ParentID: parentID,
		Icon:     icon,
	}
	if err := c.store.InsertTeam(ctx, team); err != nil {
		return store.Team{}, domainError(CodeUnavailable, "could not create team", err.Error())
	}
	return team, nil
}

// UpdateTeam renames or re-icons a team. Editors only.
func (c *Client) UpdateTeam(ctx context.Context, team store.Team) error {
	if team.Name == "" {
		return domainError(CodeInvalid, "team name required", nil)
	}
	if !c.AccessFor(team.ID).CanEdit {
		return domainError(CodeForbidden, "only managers can edit teams", nil)
	}
	if err := c.store.UpdateTeam(ctx, team); err != nil {
		return domainError(CodeUnavailable, "could not save team", err.Error())
	}
	return nil
}

// DeleteTeam removes a team and everything under it. Admins only.
func (c *Client) DeleteTeam(ctx context.Context, teamID string) error {
	if !c.AccessFor(teamID).IsAdmin {
		return domainError(CodeForbidden, "only admins can delete teams", nil)
	}
	if err := c.store.DeleteTeam(ctx, teamID); err != nil {
		return domainError(CodeUnavailable, "could not delete team", err.Error())
	}
	return nil
}

// Search runs a full-text query over threads and replies, restricted to the
// teams the user can see unless they are an admin.
func (c *Client) Search(text, teamID string) (search.Response, error) {
	if c.search == nil {
		return search.Response{}, domainError(CodeUnavailable, "search not configured", nil)
	}
	q := search.Query{Text: text, FilterTeamID: teamID}
	if c.Session().Role != rbac.RoleAdmin {
		ids := make([]string, 0)
		for _, m := range c.Memberships().Data {
			ids = append(ids, m.TeamID)
		}
		q.TeamIDs = ids
	}
	return c.search.Search(q), nil
}

// NewAttachmentUpload mints a storage key and a presigned PUT URL. The
// returned attachment carries no size yet; the caller fills it in after the
// upload completes.
func (c *Client) NewAttachmentUpload(ctx context.Context, filename string) (store.Attachment, string, error) {
	if c.attach == nil {
		return store.Attachment{}, "", domainError(CodeUnavailable, "attachments not configured", nil)
	}
	key := c.attach.NewKey()
	uploadURL, err := c.attach.UploadURL(ctx, key)
	if err != nil {
		return store.Attachment{}, "", domainError(CodeUnavailable, "could not presign upload", err.Error())
	}
	return store.Attachment{Name: filename, Key: key}, uploadURL, nil
}

// AttachmentURL resolves a stored attachment to a presigned download URL.
func (c *Client) AttachmentURL(ctx context.Context, att store.Attachment) (string, error) {
	if c.attach == nil {
		return "", domainError(CodeUnavailable, "attachments not configured", nil)
	}
	downloadURL, err := c.attach.DownloadURL(ctx, att.Key, att.Name)
	if err != nil {
		return "", domainError(CodeUnavailable, "could not presign download", err.Error())
	}
	return downloadURL, nil
}

// tagNames supplies the user's tag memberships to the dispatcher, memoized
// briefly to keep per-event cost off the store.
func (c *Client) tagNames() []string {
	c.tagMu.Lock()
	defer c.tagMu.Unlock()
	if time.Since(c.tagNamesAt) < time.Minute && c.tagCache != nil {
		return c.tagCache
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	names, err := c.store.TagNamesForUser(ctx, c.Session().UserID)
	if err != nil {
		return c.tagCache
	}
	c.tagCache = names
	c.tagNamesAt = time.Now()
	return names
}
