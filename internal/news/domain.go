package news

import (
	"errors"
	"time"
)

var (
	// ErrPostNotFound indicates an unknown post id.
	ErrPostNotFound = errors.New("news: post not found")
	// ErrAlreadyPublished indicates a publish call on a published post.
	ErrAlreadyPublished = errors.New("news: post already published")
)

// Post statuses.
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
)

// Post is a board announcement. Drafts are visible to board roles only;
// publishing makes the post visible to members and triggers the email
// broadcast.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	AuthorID    int64      `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
