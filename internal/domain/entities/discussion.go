package entities

import "time"

// MaxCommentLength is the longest comment or reply accepted.
const MaxCommentLength = 500

// DiscussionThread is a conversation attached to one bill.
type DiscussionThread struct {
	ID          string         `json:"id" db:"id"`
	BillHref    string         `json:"bill_href" db:"bill_href"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	Comments    []*Comment     `json:"comments,omitempty" db:"-"`
	Summary     *ThreadSummary `json:"summary,omitempty" db:"-"`
}

// Comment is a top-level comment, or a reply when ParentID is set.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	ThreadID  string    `json:"thread_id" db:"thread_id"`
	ParentID  *string   `json:"parent_id,omitempty" db:"parent_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	Likes     int       `json:"likes" db:"likes"`
	Dislikes  int       `json:"dislikes" db:"dislikes"`
	Reported  bool      `json:"reported" db:"reported"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReactionKind is a user's vote on a comment.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Valid reports whether k is a known reaction.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// CommentReport flags a comment for moderation.
type CommentReport struct {
	ID        string    `json:"id" db:"id"`
	CommentID string    `json:"comment_id" db:"comment_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FactCheck is the model's assessment of one claim made in a thread.
type FactCheck struct {
	Claim   string `json:"claim"`
	Verdict string `json:"verdict"`
}

// ThreadSummary is the generated digest of a thread.
type ThreadSummary struct {
	ThreadID    string      `json:"thread_id"`
	Summary     string      `json:"summary"`
	Sentiment   string      `json:"sentiment"`
	FactChecks  []FactCheck `json:"fact_checks"`
	GeneratedAt time.Time   `json:"generated_at"`
}
