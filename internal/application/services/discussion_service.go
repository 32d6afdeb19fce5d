package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

const (
	threadSummarySystemPrompt = "You moderate public discussions about Canadian federal bills. " +
		"You summarise comments neutrally and check factual claims against what is publicly known about the bill."

	threadSummaryAssistantPrompt = "Answer with exactly these labelled sections:\n" +
		"Summary: <three sentences at most>\n" +
		"Sentiment: <positive, negative, mixed or neutral>\n" +
		"Fact Checks:\n- <claim> => <verdict with a short explanation>\n" +
		"Write `Fact Checks: None` when no comment makes a checkable claim."

	// summaryCommentLimit caps how many comments are sent for summarisation.
	summaryCommentLimit = 100
)

var (
	summaryLabel   = regexp.MustCompile(`(?i)^[\s*#-]*(summary|sentiment|fact[\s_-]*checks?)\s*\**\s*:\s*\**\s*(.*)$`)
	factCheckSplit = regexp.MustCompile(`\s*(?:=>|->|:|\s[-–]\s)\s*`)
	listBullet     = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)
)

// DiscussionService manages bill discussion threads
type DiscussionService struct {
	repo      repositories.DiscussionRepository
	store     repositories.BillStore
	generator providers.TextGenerator
	now       func() time.Time
}

// NewDiscussionService creates a new discussion service. generator may be nil,
// which disables thread summaries.
func NewDiscussionService(repo repositories.DiscussionRepository, store repositories.BillStore, generator providers.TextGenerator) *DiscussionService {
	return &DiscussionService{repo: repo, store: store, generator: generator, now: time.Now}
}

// CreateThreadInput holds the fields of a new thread
type CreateThreadInput struct {
	BillHref    string `json:"bill_href"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// CreateThread opens a discussion on a stored bill
func (s *DiscussionService) CreateThread(ctx context.Context, in CreateThreadInput) (*entities.DiscussionThread, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if in.BillHref == "" || in.Title == "" || in.Description == "" || in.CreatedBy == "" {
		return nil, apperrors.NewValidationError("bill_href, title, description and created_by are required")
	}

	bills, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}
	if _, ok := bills[in.BillHref]; !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bill %s not found", in.BillHref))
	}

	thread := &entities.DiscussionThread{
		ID:          uuid.New().String(),
		BillHref:    in.BillHref,
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return thread, nil
}

// ListThreads returns the threads of a bill
func (s *DiscussionService) ListThreads(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error) {
	if billHref == "" {
		return nil, apperrors.NewValidationError("bill is required")
	}
	return s.repo.ListThreadsByBill(ctx, billHref)
}

// GetThread returns a thread with its comments and latest summary
func (s *DiscussionService) GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error) {
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	thread.Comments = comments

	summary, err := s.repo.GetSummary(ctx, id)
	switch {
	case err == nil:
		thread.Summary = summary
	case !apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return nil, fmt.Errorf("failed to get thread summary: %w", err)
	}
	return thread, nil
}

// PostComment adds a top-level comment, or a reply when parentID is not empty
func (s *DiscussionService) PostComment(ctx context.Context, threadID, parentID, userID, content string) (*entities.Comment, error) {
	content = strings.TrimSpace(content)
	if userID == "" || content == "" {
		return nil, apperrors.NewValidationError("user_id and content are required")
	}
	if utf8.RuneCountInString(content) > entities.MaxCommentLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("content exceeds %d characters", entities.MaxCommentLength))
	}

	if _, err := s.repo.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	comment := &entities.Comment{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if parentID != "" {
		parent, err := s.repo.GetComment(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.ThreadID != threadID {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("comment %s not found in thread %s", parentID, threadID))
		}
		comment.ParentID = &parentID
	}

	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// React records a like or dislike. A user holds at most one reaction per
// comment; reacting the other way moves it and repeating it is a conflict.
func (s *DiscussionService) React(ctx context.Context, threadID, commentID, userID string, kind entities.ReactionKind) (*entities.Comment, error) {
	if !kind.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown reaction %q", kind))
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	comment, err := s.threadComment(ctx, threadID, commentID)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.GetReaction(ctx, commentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reaction: %w", err)
	}
	if previous == kind {
		return nil, apperrors.NewConflictError(fmt.Sprintf("user already reacted with %s", kind))
	}
	if err := s.repo.SetReaction(ctx, commentID, userID, kind, previous); err != nil {
		return nil, fmt.Errorf("failed to set reaction: %w", err)
	}

	adjust(comment, kind, 1)
	if previous != "" {
		adjust(comment, previous, -1)
	}
	return comment, nil
}

func adjust(c *entities.Comment, kind entities.ReactionKind, delta int) {
	switch kind {
	case entities.ReactionLike:
		c.Likes += delta
	case entities.ReactionDislike:
		c.Dislikes += delta
	}
}

// Report flags a comment for moderation
func (s *DiscussionService) Report(ctx context.Context, threadID, commentID, userID, reason string) (*entities.CommentReport, error) {
	reason = strings.TrimSpace(reason)
	if userID == "" || reason == "" {
		return nil, apperrors.NewValidationError("user_id and reason are required")
	}
	if _, err := s.threadComment(ctx, threadID, commentID); err != nil {
		return nil, err
	}

	report := &entities.CommentReport{
		ID:        uuid.New().String(),
		CommentID: commentID,
		UserID:    userID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to report comment: %w", err)
	}
	log.Info().Str("comment_id", commentID).Str("user_id", userID).Msg("comment reported")
	return report, nil
}

func (s *DiscussionService) threadComment(ctx context.Context, threadID, commentID string) (*entities.Comment, error) {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.ThreadID != threadID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("comment %s not found in thread %s", commentID, threadID))
	}
	return comment, nil
}

// SummarizeThread asks the model for a summary, the overall sentiment and fact
// checks of the thread's comments, and stores the result.
func (s *DiscussionService) SummarizeThread(ctx context.Context, threadID string) (*entities.ThreadSummary, error) {
	if s.generator == nil {
		return nil, apperrors.NewInternalError("thread summaries are not configured", nil)
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if len(comments) == 0 {
		return nil, apperrors.NewValidationError("thread has no comments to summarize")
	}

	raw, err := s.generator.Generate(ctx, threadSummarySystemPrompt, threadSummaryAssistantPrompt, threadPrompt(thread, comments))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeRateLimited) {
			return nil, err
		}
		return nil, apperrors.NewExternalError("failed to summarize thread", err)
	}

	summary := parseThreadSummary(raw)
	summary.ThreadID = threadID
	summary.GeneratedAt = s.now().UTC()
	if err := s.repo.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to save thread summary: %w", err)
	}
	return summary, nil
}

func threadPrompt(thread *entities.DiscussionThread, comments []*entities.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread: %s\n%s\n\nComments:\n", thread.Title, thread.Description)
	if len(comments) > summaryCommentLimit {
		comments = comments[len(comments)-summaryCommentLimit:]
	}
	for _, c := range comments {
		prefix := "-"
		if c.ParentID != nil {
			prefix = "  - (reply)"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", prefix, c.UserID, c.Content)
	}
	return b.String()
}

// parseThreadSummary reads the labelled answer. An answer without labels is
// kept whole as the summary.
func parseThreadSummary(raw string) *entities.ThreadSummary {
	summary := &entities.ThreadSummary{FactChecks: []entities.FactCheck{}}
	section := ""
	var summaryLines []string
	matched := false

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := summaryLabel.FindStringSubmatch(trimmed); m != nil {
			matched = true
			section = strings.ToLower(m[1][:4])
			trimmed = strings.TrimSpace(m[2])
			if trimmed == "" {
				continue
			}
		}
		switch section {
		case "summ":
			summaryLines = append(summaryLines, trimmed)
		case "sent":
			summary.Sentiment = strings.TrimSpace(strings.Join([]string{summary.Sentiment, trimmed}, " "))
		case "fact":
			if check, ok := parseFactCheck(trimmed); ok {
				summary.FactChecks = append(summary.FactChecks, check)
			}
		}
	}

	if !matched {
		summary.Summary = strings.TrimSpace(raw)
		return summary
	}
	summary.Summary = strings.Join(summaryLines, " ")
	return summary
}

func parseFactCheck(line string) (entities.FactCheck, bool) {
	line = strings.TrimSpace(listBullet.ReplaceAllString(line, ""))
	if line == "" || strings.EqualFold(strings.Trim(line, "."), "none") {
		return entities.FactCheck{}, false
	}
	parts := factCheckSplit.Split(line, 2)
	if len(parts) < 2 {
		return entities.FactCheck{Claim: line}, true
	}
	return entities.FactCheck{Claim: strings.TrimSpace(parts[0]), Verdict: strings.TrimSpace(parts[1])}, true
}
