package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	"github.com/mytegroup/billtracker/internal/infrastructure/clients/postgres"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

// DiscussionAdapter implements DiscussionRepository
type DiscussionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDiscussionAdapter creates a new discussion adapter
func NewDiscussionAdapter(client *postgres.Client) repositories.DiscussionRepository {
	return &DiscussionAdapter{
		client: client,
		db:     client.Goqu(),
	}
}

var commentColumns = []interface{}{
	"id", "thread_id", "parent_id", "user_id", "content",
	"likes", "dislikes", "reported", "created_at",
}

// CreateThread creates a new thread
func (a *DiscussionAdapter) CreateThread(ctx context.Context, thread *entities.DiscussionThread) error {
	query, args, err := a.db.Insert("discussion_threads").Rows(goqu.Record{
		"id":          thread.ID,
		"bill_href":   thread.BillHref,
		"title":       thread.Title,
		"description": thread.Description,
		"created_by":  thread.CreatedBy,
		"created_at":  thread.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create thread", err)
	}
	return nil
}

// GetThread retrieves a thread by ID
func (a *DiscussionAdapter) GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error) {
	query, args, err := a.db.Select("id", "bill_href", "title", "description", "created_by", "created_at").
		From("discussion_threads").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	thread := &entities.DiscussionThread{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&thread.ID, &thread.BillHref, &thread.Title, &thread.Description, &thread.CreatedBy, &thread.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("thread %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get thread", err)
	}
	return thread, nil
}

// ListThreadsByBill lists the threads of a bill, oldest first
func (a *DiscussionAdapter) ListThreadsByBill(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error) {
	query, args, err := a.db.Select("id", "bill_href", "title", "description", "created_by", "created_at").
		From("discussion_threads").
		Where(goqu.Ex{"bill_href": billHref}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list threads", err)
	}
	defer rows.Close()

	var threads []*entities.DiscussionThread
	for rows.Next() {
		t := &entities.DiscussionThread{}
		if err := rows.Scan(&t.ID, &t.BillHref, &t.Title, &t.Description, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan thread", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate threads", err)
	}
	return threads, nil
}

// CreateComment stores a comment or reply
func (a *DiscussionAdapter) CreateComment(ctx context.Context, comment *entities.Comment) error {
	query, args, err := a.db.Insert("discussion_comments").Rows(goqu.Record{
		"id":         comment.ID,
		"thread_id":  comment.ThreadID,
		"parent_id":  comment.ParentID,
		"user_id":    comment.UserID,
		"content":    comment.Content,
		"likes":      comment.Likes,
		"dislikes":   comment.Dislikes,
		"reported":   comment.Reported,
		"created_at": comment.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create comment", err)
	}
	return nil
}

// GetComment retrieves a comment by ID
func (a *DiscussionAdapter) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	query, args, err := a.db.Select(commentColumns...).
		From("discussion_comments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	comment, err := scanComment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("comment %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get comment", err)
	}
	return comment, nil
}

// ListComments lists every comment of a thread in posting order
func (a *DiscussionAdapter) ListComments(ctx context.Context, threadID string) ([]*entities.Comment, error) {
	query, args, err := a.db.Select(commentColumns...).
		From("discussion_comments").
		Where(goqu.Ex{"thread_id": threadID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list comments", err)
	}
	defer rows.Close()

	var comments []*entities.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan comment", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate comments", err)
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(row rowScanner) (*entities.Comment, error) {
	c := &entities.Comment{}
	var parentID sql.NullString
	if err := row.Scan(
		&c.ID, &c.ThreadID, &parentID, &c.UserID, &c.Content,
		&c.Likes, &c.Dislikes, &c.Reported, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return c, nil
}

// GetReaction returns the user's reaction on a comment, or "" when there is none
func (a *DiscussionAdapter) GetReaction(ctx context.Context, commentID, userID string) (entities.ReactionKind, error) {
	query, args, err := a.db.Select("kind").
		From("comment_reactions").
		Where(goqu.Ex{"comment_id": commentID, "user_id": userID}).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build query", err)
	}

	var kind string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&kind)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to get reaction", err)
	}
	return entities.ReactionKind(kind), nil
}

func counterColumn(kind entities.ReactionKind) string {
	if kind == entities.ReactionDislike {
		return "dislikes"
	}
	return "likes"
}

// SetReaction records the reaction and moves the comment counters in one transaction
func (a *DiscussionAdapter) SetReaction(ctx context.Context, commentID, userID string, kind, previous entities.ReactionKind) error {
	statements := make([]string, 0, 3)

	upsert, _, err := a.db.Insert("comment_reactions").
		Rows(goqu.Record{"comment_id": commentID, "user_id": userID, "kind": string(kind)}).
		OnConflict(goqu.DoUpdate("comment_id, user_id", goqu.Record{"kind": string(kind)})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reaction query", err)
	}
	statements = append(statements, upsert)

	col := counterColumn(kind)
	increment, _, err := a.db.Update("discussion_comments").
		Set(goqu.Record{col: goqu.L(col + " + 1")}).
		Where(goqu.Ex{"id": commentID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build counter query", err)
	}
	statements = append(statements, increment)

	if previous != "" && previous != kind {
		prev := counterColumn(previous)
		decrement, _, err := a.db.Update("discussion_comments").
			Set(goqu.Record{prev: goqu.L("GREATEST(" + prev + " - 1, 0)")}).
			Where(goqu.Ex{"id": commentID}).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build counter query", err)
		}
		statements = append(statements, decrement)
	}

	return a.inTx(ctx, "failed to set reaction", statements)
}

// CreateReport stores a report and flags the comment
func (a *DiscussionAdapter) CreateReport(ctx context.Context, report *entities.CommentReport) error {
	insert, _, err := a.db.Insert("comment_reports").Rows(goqu.Record{
		"id":         report.ID,
		"comment_id": report.CommentID,
		"user_id":    report.UserID,
		"reason":     report.Reason,
		"created_at": report.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	flag, _, err := a.db.Update("discussion_comments").
		Set(goqu.Record{"reported": true}).
		Where(goqu.Ex{"id": report.CommentID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.inTx(ctx, "failed to report comment", []string{insert, flag})
}

func (a *DiscussionAdapter) inTx(ctx context.Context, msg string, statements []string) error {
	tx, err := a.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError(msg, err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return apperrors.NewInternalError(msg, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError(msg, err)
	}
	return nil
}

// SaveSummary stores the summary of a thread, replacing any earlier one
func (a *DiscussionAdapter) SaveSummary(ctx context.Context, summary *entities.ThreadSummary) error {
	factChecks := summary.FactChecks
	if factChecks == nil {
		factChecks = []entities.FactCheck{}
	}
	encoded, err := json.Marshal(factChecks)
	if err != nil {
		return apperrors.NewInternalError("failed to encode fact checks", err)
	}

	record := goqu.Record{
		"thread_id":    summary.ThreadID,
		"summary":      summary.Summary,
		"sentiment":    summary.Sentiment,
		"fact_checks":  string(encoded),
		"generated_at": summary.GeneratedAt,
	}
	query, args, err := a.db.Insert("thread_summaries").
		Rows(record).
		OnConflict(goqu.DoUpdate("thread_id", goqu.Record{
			"summary":      summary.Summary,
			"sentiment":    summary.Sentiment,
			"fact_checks":  string(encoded),
			"generated_at": summary.GeneratedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save thread summary", err)
	}
	return nil
}

// GetSummary retrieves the stored summary of a thread
func (a *DiscussionAdapter) GetSummary(ctx context.Context, threadID string) (*entities.ThreadSummary, error) {
	query, args, err := a.db.Select("thread_id", "summary", "sentiment", "fact_checks", "generated_at").
		From("thread_summaries").
		Where(goqu.Ex{"thread_id": threadID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	summary := &entities.ThreadSummary{}
	var factChecks []byte
	var generatedAt time.Time
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&summary.ThreadID, &summary.Summary, &summary.Sentiment, &factChecks, &generatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("thread %s has no summary", threadID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get thread summary", err)
	}
	summary.GeneratedAt = generatedAt

	if len(factChecks) > 0 {
		if err := json.Unmarshal(factChecks, &summary.FactChecks); err != nil {
			return nil, apperrors.NewInternalError("failed to decode fact checks", err)
		}
	}
	return summary, nil
}
