package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"huddle/client/internal/feed"
)

// PostgresStore adapts the remote data service contract onto Postgres. When a
// publisher is attached, every mutation emits a change event after the write
// commits, mirroring the managed store's change stream.
type PostgresStore struct {
	db   *sql.DB
	feed feed.Publisher
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithPublisher attaches the change-feed publisher. Publish failures are
// logged, never surfaced: the write itself already succeeded.
func (s *PostgresStore) WithPublisher(p feed.Publisher) *PostgresStore {
	s.feed = p
	return s
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) emit(ctx context.Context, table, op, id string, record any) {
	if s.feed == nil {
		return
	}
	var raw json.RawMessage
	if record != nil {
		encoded, err := json.Marshal(record)
		if err != nil {
			log.Printf("store: encode %s event for %s: %v", op, table, err)
		} else {
			raw = encoded
		}
	}
	if err := s.feed.Publish(ctx, feed.Event{Table: table, Op: op, ID: id, Record: raw}); err != nil {
		log.Printf("store: publish %s event for %s/%s: %v", op, table, id, err)
	}
}

// --- profiles ---

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, avatar_url, role, preference
		FROM profiles
		ORDER BY display_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	items := make([]Profile, 0)
	for rows.Next() {
		var item Profile
		if err := rows.Scan(&item.ID, &item.Email, &item.DisplayName, &item.AvatarURL, &item.Role, &item.Preference); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var item Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, avatar_url, role, preference
		FROM profiles
		WHERE id=$1
	`, userID).Scan(&item.ID, &item.Email, &item.DisplayName, &item.AvatarURL, &item.Role, &item.Preference)
	if err != nil {
		return Profile{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	var item Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, avatar_url, role, preference
		FROM profiles
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&item.ID, &item.Email, &item.DisplayName, &item.AvatarURL, &item.Role, &item.Preference)
	if err != nil {
		return Profile{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, item Profile) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET display_name=$2, avatar_url=$3, role=$4, preference=$5
		WHERE id=$1
	`, item.ID, item.DisplayName, item.AvatarURL, item.Role, item.Preference)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	s.emit(ctx, feed.TableProfiles, feed.OpUpdate, item.ID, item)
	return nil
}

// --- teams ---

func (s *PostgresStore) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, icon
		FROM teams
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	items := make([]Team, 0)
	for rows.Next() {
		var item Team
		if err := rows.Scan(&item.ID, &item.Name, &item.ParentID, &item.Icon); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTeam(ctx context.Context, item Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, parent_id, icon)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.Name, item.ParentID, item.Icon)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	s.emit(ctx, feed.TableTeams, feed.OpInsert, item.ID, item)
	return nil
}

func (s *PostgresStore) UpdateTeam(ctx context.Context, item Team) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE teams SET name=$2, parent_id=$3, icon=$4 WHERE id=$1
	`, item.ID, item.Name, item.ParentID, item.Icon)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	s.emit(ctx, feed.TableTeams, feed.OpUpdate, item.ID, item)
	return nil
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id=$1`, teamID)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	s.emit(ctx, feed.TableTeams, feed.OpDelete, teamID, nil)
	return nil
}

// --- memberships ---

func (s *PostgresStore) ListMembershipsByUser(ctx context.Context, userID string) ([]Membership, error) {
	return s.listMemberships(ctx, `WHERE user_id=$1`, userID)
}

func (s *PostgresStore) ListMembershipsByTeam(ctx context.Context, teamID string) ([]Membership, error) {
	return s.listMemberships(ctx, `WHERE team_id=$1`, teamID)
}

func (s *PostgresStore) listMemberships(ctx context.Context, where string, arg any) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, user_id, role, last_read_at, created_at
		FROM memberships
	`+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	items := make([]Membership, 0)
	for rows.Next() {
		var item Membership
		if err := rows.Scan(&item.TeamID, &item.UserID, &item.Role, &item.LastReadAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return items, nil
}

// UpsertMemberships applies a batch of role assignments as independent
// per-row upserts in one call. Used for bulk role updates.
func (s *PostgresStore) UpsertMemberships(ctx context.Context, items []Membership) error {
	if len(items) == 0 {
		return nil
	}
	teamIDs := make([]string, len(items))
	userIDs := make([]string, len(items))
	roles := make([]string, len(items))
	for i, item := range items {
		teamIDs[i] = item.TeamID
		userIDs[i] = item.UserID
		roles[i] = item.Role
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (team_id, user_id, role)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[])
		ON CONFLICT (team_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, teamIDs, userIDs, roles)
	if err != nil {
		return fmt.Errorf("upsert memberships: %w", err)
	}
	for _, item := range items {
		s.emit(ctx, feed.TableMemberships, feed.OpUpdate, item.TeamID+":"+item.UserID, item)
	}
	return nil
}

func (s *PostgresStore) DeleteMembership(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE team_id=$1 AND user_id=$2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	s.emit(ctx, feed.TableMemberships, feed.OpDelete, teamID+":"+userID, nil)
	return nil
}

// MarkTeamRead advances last_read_at for (team, user). The GREATEST guard
// keeps the marker monotonic even if writes land out of order.
func (s *PostgresStore) MarkTeamRead(ctx context.Context, teamID, userID string, readAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE memberships
		SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $3)
		WHERE team_id=$1 AND user_id=$2
	`, teamID, userID, readAt)
	if err != nil {
		return fmt.Errorf("mark team read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark team read: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	s.emit(ctx, feed.TableMemberships, feed.OpUpdate, teamID+":"+userID, Membership{TeamID: teamID, UserID: userID, LastReadAt: &readAt})
	return nil
}

// --- threads ---

// ThreadScope narrows a thread fetch. TeamID filters to one team; TeamIDs
// filters to a membership union; both empty means all teams (admins).
type ThreadScope struct {
	TeamID  string
	TeamIDs []string
	Limit   int
}

// ListThreads fetches threads with their replies eager-loaded in a single
// round trip. A thread without replies gets an empty slice, never nil.
// Threads come back ascending by creation time.
func (s *PostgresStore) ListThreads(ctx context.Context, scope ThreadScope) ([]Thread, error) {
	query := `
		SELECT t.id, t.team_id, t.title, t.content, t.author_id, t.author_name,
			t.status, t.pinned, COALESCE(t.completed_by, ''), t.completed_at,
			COALESCE(t.attachments, '[]'::jsonb), t.created_at, t.updated_at,
			COALESCE(r.replies, '[]'::json)
		FROM threads t
		LEFT JOIN LATERAL (
			SELECT json_agg(json_build_object(
				'id', r.id,
				'thread_id', r.thread_id,
				'content', r.content,
				'author_id', r.author_id,
				'author_name', r.author_name,
				'attachments', COALESCE(r.attachments, '[]'::jsonb),
				'created_at', r.created_at,
				'updated_at', r.updated_at
			) ORDER BY r.created_at) AS replies
			FROM replies r
			WHERE r.thread_id = t.id
		) r ON true
	`
	args := []any{}
	switch {
	case scope.TeamID != "":
		query += ` WHERE t.team_id = $1`
		args = append(args, scope.TeamID)
	case len(scope.TeamIDs) > 0:
		query += ` WHERE t.team_id = ANY($1)`
		args = append(args, scope.TeamIDs)
	}
	query += ` ORDER BY t.created_at ASC`

	limit := scope.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		var item Thread
		var attachments, replies []byte
		if err := rows.Scan(
			&item.ID, &item.TeamID, &item.Title, &item.Content, &item.AuthorID, &item.AuthorName,
			&item.Status, &item.Pinned, &item.CompletedBy, &item.CompletedAt,
			&attachments, &item.CreatedAt, &item.UpdatedAt, &replies,
		); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		if err := json.Unmarshal(attachments, &item.Attachments); err != nil {
			return nil, fmt.Errorf("decode thread attachments: %w", err)
		}
		if err := json.Unmarshal(replies, &item.Replies); err != nil {
			return nil, fmt.Errorf("decode thread replies: %w", err)
		}
		if item.Replies == nil {
			item.Replies = []Reply{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	var item Thread
	var attachments, replies []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.team_id, t.title, t.content, t.author_id, t.author_name,
			t.status, t.pinned, COALESCE(t.completed_by, ''), t.completed_at,
			COALESCE(t.attachments, '[]'::jsonb), t.created_at, t.updated_at,
			COALESCE((
				SELECT json_agg(json_build_object(
					'id', r.id, 'thread_id', r.thread_id, 'content', r.content,
					'author_id', r.author_id, 'author_name', r.author_name,
					'attachments', COALESCE(r.attachments, '[]'::jsonb),
					'created_at', r.created_at, 'updated_at', r.updated_at
				) ORDER BY r.created_at)
				FROM replies r WHERE r.thread_id = t.id
			), '[]'::json)
		FROM threads t
		WHERE t.id=$1
	`, threadID).Scan(
		&item.ID, &item.TeamID, &item.Title, &item.Content, &item.AuthorID, &item.AuthorName,
		&item.Status, &item.Pinned, &item.CompletedBy, &item.CompletedAt,
		&attachments, &item.CreatedAt, &item.UpdatedAt, &replies,
	)
	if err != nil {
		return Thread{}, err
	}
	if err := json.Unmarshal(attachments, &item.Attachments); err != nil {
		return Thread{}, fmt.Errorf("decode thread attachments: %w", err)
	}
	if err := json.Unmarshal(replies, &item.Replies); err != nil {
		return Thread{}, fmt.Errorf("decode thread replies: %w", err)
	}
	if item.Replies == nil {
		item.Replies = []Reply{}
	}
	return item, nil
}

func (s *PostgresStore) InsertThread(ctx context.Context, item Thread) error {
	attachments, err := json.Marshal(item.Attachments)
	if err != nil {
		return fmt.Errorf("encode thread attachments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, team_id, title, content, author_id, author_name, status, pinned, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.TeamID, item.Title, item.Content, item.AuthorID, item.AuthorName,
		item.Status, item.Pinned, attachments)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	s.emit(ctx, feed.TableThreads, feed.OpInsert, item.ID, item)
	return nil
}

func (s *PostgresStore) UpdateThreadStatus(ctx context.Context, threadID, status, completedBy string, completedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET status=$2, completed_by=$3, completed_at=$4, updated_at=NOW()
		WHERE id=$1
	`, threadID, status, completedBy, completedAt)
	if err != nil {
		return fmt.Errorf("update thread status: %w", err)
	}
	s.emit(ctx, feed.TableThreads, feed.OpUpdate, threadID, nil)
	return nil
}

func (s *PostgresStore) UpdateThreadPinned(ctx context.Context, threadID string, pinned bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET pinned=$2, updated_at=NOW() WHERE id=$1
	`, threadID, pinned)
	if err != nil {
		return fmt.Errorf("update thread pinned: %w", err)
	}
	s.emit(ctx, feed.TableThreads, feed.OpUpdate, threadID, nil)
	return nil
}

func (s *PostgresStore) UpdateThreadContent(ctx context.Context, threadID, title, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET title=$2, content=$3, updated_at=NOW() WHERE id=$1
	`, threadID, title, content)
	if err != nil {
		return fmt.Errorf("update thread content: %w", err)
	}
	s.emit(ctx, feed.TableThreads, feed.OpUpdate, threadID, nil)
	return nil
}

func (s *PostgresStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id=$1`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	s.emit(ctx, feed.TableThreads, feed.OpDelete, threadID, nil)
	return nil
}

// LatestThreadByTeam returns the most recent thread creation time per team in
// one aggregate query. Teams without threads are absent from the map.
func (s *PostgresStore) LatestThreadByTeam(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, MAX(created_at)
		FROM threads
		GROUP BY team_id
	`)
	if err != nil {
		return nil, fmt.Errorf("latest thread by team: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]time.Time)
	for rows.Next() {
		var teamID string
		var createdAt time.Time
		if err := rows.Scan(&teamID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan latest thread: %w", err)
		}
		latest[teamID] = createdAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest threads: %w", err)
	}
	return latest, nil
}

// --- replies ---

func (s *PostgresStore) InsertReply(ctx context.Context, item Reply) error {
	attachments, err := json.Marshal(item.Attachments)
	if err != nil {
		return fmt.Errorf("encode reply attachments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replies (id, thread_id, content, author_id, author_name, attachments)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.ThreadID, item.Content, item.AuthorID, item.AuthorName, attachments)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	s.emit(ctx, feed.TableReplies, feed.OpInsert, item.ID, item)
	return nil
}

func (s *PostgresStore) DeleteReply(ctx context.Context, replyID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM replies WHERE id=$1`, replyID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	s.emit(ctx, feed.TableReplies, feed.OpDelete, replyID, nil)
	return nil
}

// --- reactions ---

var ErrReactionTarget = errors.New("reaction must target exactly one of thread or reply")

func (s *PostgresStore) ListReactions(ctx context.Context) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, emoji, thread_id, reply_id, user_id
		FROM reactions
	`)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	items := make([]Reaction, 0)
	for rows.Next() {
		var item Reaction
		if err := rows.Scan(&item.ID, &item.Emoji, &item.ThreadID, &item.ReplyID, &item.UserID); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return items, nil
}

// InsertReaction writes a reaction, ignoring a duplicate (target, user,
// emoji) tuple. The thread/reply target is exclusive-or.
func (s *PostgresStore) InsertReaction(ctx context.Context, item Reaction) error {
	if (item.ThreadID == nil) == (item.ReplyID == nil) {
		return ErrReactionTarget
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactions (id, emoji, thread_id, reply_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((COALESCE(thread_id, '')), (COALESCE(reply_id, '')), user_id, emoji) DO NOTHING
	`, item.ID, item.Emoji, item.ThreadID, item.ReplyID, item.UserID)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	s.emit(ctx, feed.TableReactions, feed.OpInsert, item.ID, item)
	return nil
}

func (s *PostgresStore) DeleteReaction(ctx context.Context, reactionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reactions WHERE id=$1`, reactionID)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	s.emit(ctx, feed.TableReactions, feed.OpDelete, reactionID, nil)
	return nil
}

// --- tags ---

func (s *PostgresStore) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		var item Tag
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTag(ctx context.Context, item Tag) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES ($1, $2)`, item.ID, item.Name)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	s.emit(ctx, feed.TableTags, feed.OpInsert, item.ID, item)
	return nil
}

func (s *PostgresStore) DeleteTag(ctx context.Context, tagID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	s.emit(ctx, feed.TableTags, feed.OpDelete, tagID, nil)
	return nil
}

func (s *PostgresStore) AddTagMember(ctx context.Context, tagID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tag_members (tag_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (tag_id, user_id) DO NOTHING
	`, tagID, userID)
	if err != nil {
		return fmt.Errorf("add tag member: %w", err)
	}
	s.emit(ctx, feed.TableTags, feed.OpUpdate, tagID, nil)
	return nil
}

func (s *PostgresStore) RemoveTagMember(ctx context.Context, tagID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tag_members WHERE tag_id=$1 AND user_id=$2`, tagID, userID)
	if err != nil {
		return fmt.Errorf("remove tag member: %w", err)
	}
	s.emit(ctx, feed.TableTags, feed.OpUpdate, tagID, nil)
	return nil
}

// TagNamesForUser returns the names of every tag the user is a member of,
// for mention matching.
func (s *PostgresStore) TagNamesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		JOIN tag_members tm ON tm.tag_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("tag names for user: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag names: %w", err)
	}
	return names, nil
}
