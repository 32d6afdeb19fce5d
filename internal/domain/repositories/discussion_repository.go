package repositories

import (
	"context"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// DiscussionRepository defines the interface for discussion threads and comments
type DiscussionRepository interface {
	CreateThread(ctx context.Context, thread *entities.DiscussionThread) error
	GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error)
	ListThreadsByBill(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error)

	CreateComment(ctx context.Context, comment *entities.Comment) error
	GetComment(ctx context.Context, id string) (*entities.Comment, error)
	ListComments(ctx context.Context, threadID string) ([]*entities.Comment, error)

	// GetReaction returns the user's current reaction on a comment, or "" when none
	GetReaction(ctx context.Context, commentID, userID string) (entities.ReactionKind, error)

	// SetReaction stores kind as the user's reaction, replacing previous, and adjusts the counters
	SetReaction(ctx context.Context, commentID, userID string, kind, previous entities.ReactionKind) error

	CreateReport(ctx context.Context, report *entities.CommentReport) error

	SaveSummary(ctx context.Context, summary *entities.ThreadSummary) error
	GetSummary(ctx context.Context, threadID string) (*entities.ThreadSummary, error)
}
