package store

import "time"

// Thread lifecycle states.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Notification preference values carried on a profile.
const (
	PrefAll      = "all"
	PrefMentions = "mentions"
	PrefNone     = "none"
)

// Profile is a user identity owned by the identity provider. Role is the
// global role, normalized by callers via rbac.Normalize.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
	Preference  string `json:"preference"`
}

// Team is a grouping of threads. A team with a non-nil ParentID is a channel
// of its parent.
type Team struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Icon     string  `json:"icon"`
}

// Membership links a user to a team with a team-scoped role and read marker.
// Unique per (team, user).
type Membership struct {
	TeamID     string     `json:"team_id"`
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	LastReadAt *time.Time `json:"last_read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Attachment is a stored file reference hanging off a thread or reply. The
// key resolves to a presigned URL at the attachment boundary.
type Attachment struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Thread is a top-level posted item within a team. AuthorName is a display
// name snapshot taken at creation; ownership decisions resolve by AuthorID.
type Thread struct {
	ID          string       `json:"id"`
	TeamID      string       `json:"team_id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	Status      string       `json:"status"`
	Pinned      bool         `json:"pinned"`
	CompletedBy string       `json:"completed_by"`
	CompletedAt *time.Time   `json:"completed_at"`
	Attachments []Attachment `json:"attachments"`
	Replies     []Reply      `json:"replies"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Reply belongs to exactly one thread.
type Reply struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	Content     string       `json:"content"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Reaction targets exactly one of a thread or a reply, never both. At most
// one row exists per (target, user, emoji).
type Reaction struct {
	ID       string  `json:"id"`
	Emoji    string  `json:"emoji"`
	ThreadID *string `json:"thread_id"`
	ReplyID  *string `json:"reply_id"`
	UserID   string  `json:"user_id"`
}

// Tag is a named group whose members can be @-mentioned collectively.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagMember links a profile to a tag.
type TagMember struct {
	TagID  string `json:"tag_id"`
	UserID string `json:"user_id"`
}
