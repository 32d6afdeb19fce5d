package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

const testThreadID = "thread-1"

func discussionFixture(t *testing.T) (*DiscussionService, *MockDiscussionRepository, *MockTextGenerator) {
	t.Helper()
	repo := new(MockDiscussionRepository)
	gen := new(MockTextGenerator)
	store := seededStore(t, newBill("https://example.org/bill/c-18", "C-18", 10))
	svc := NewDiscussionService(repo, store, gen)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, gen
}

func TestDiscussionService_CreateThread(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := discussionFixture(t)
	repo.On("CreateThread", mock.Anything, mock.MatchedBy(func(th *entities.DiscussionThread) bool {
		return th.ID != "" && th.Title == "Impact on local news" && th.BillHref == "https://example.org/bill/c-18"
	})).Return(nil).Once()

	thread, err := svc.CreateThread(ctx, CreateThreadInput{
		BillHref:    "https://example.org/bill/c-18",
		Title:       "  Impact on local news ",
		Description: "Will small outlets benefit?",
		CreatedBy:   "ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "Impact on local news", thread.Title)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), thread.CreatedAt)

	_, err = svc.CreateThread(ctx, CreateThreadInput{BillHref: "https://example.org/bill/c-18", Title: "t"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.CreateThread(ctx, CreateThreadInput{BillHref: "https://example.org/bill/x", Title: "t", Description: "d", CreatedBy: "ada"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	repo.AssertExpectations(t)
}

func TestDiscussionService_PostComment(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := discussionFixture(t)
	repo.On("GetThread", mock.Anything, testThreadID).Return(&entities.DiscussionThread{ID: testThreadID}, nil)
	repo.On("GetComment", mock.Anything, "c1").Return(&entities.Comment{ID: "c1", ThreadID: testThreadID}, nil)
	repo.On("GetComment", mock.Anything, "elsewhere").Return(&entities.Comment{ID: "elsewhere", ThreadID: "thread-2"}, nil)
	repo.On("CreateComment", mock.Anything, mock.Anything).Return(nil)

	comment, err := svc.PostComment(ctx, testThreadID, "", "ada", "Good for journalism.")
	require.NoError(t, err)
	assert.Nil(t, comment.ParentID)

	reply, err := svc.PostComment(ctx, testThreadID, "c1", "bob", "Disagree.")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, "c1", *reply.ParentID)

	_, err = svc.PostComment(ctx, testThreadID, "", "ada", strings.Repeat("a", entities.MaxCommentLength+1))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.PostComment(ctx, testThreadID, "", "ada", strings.Repeat("é", entities.MaxCommentLength))
	assert.NoError(t, err)

	_, err = svc.PostComment(ctx, testThreadID, "", "ada", "   ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.PostComment(ctx, testThreadID, "elsewhere", "ada", "reply")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestDiscussionService_React(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := discussionFixture(t)
	for i := 0; i < 3; i++ {
		repo.On("GetComment", mock.Anything, "c1").Return(&entities.Comment{ID: "c1", ThreadID: testThreadID, Likes: 2}, nil).Once()
	}

	repo.On("GetReaction", mock.Anything, "c1", "ada").Return(entities.ReactionKind(""), nil).Once()
	repo.On("SetReaction", mock.Anything, "c1", "ada", entities.ReactionLike, entities.ReactionKind("")).Return(nil).Once()
	comment, err := svc.React(ctx, testThreadID, "c1", "ada", entities.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, 3, comment.Likes)

	repo.On("GetReaction", mock.Anything, "c1", "ada").Return(entities.ReactionLike, nil).Once()
	_, err = svc.React(ctx, testThreadID, "c1", "ada", entities.ReactionLike)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	repo.On("GetReaction", mock.Anything, "c1", "ada").Return(entities.ReactionLike, nil).Once()
	repo.On("SetReaction", mock.Anything, "c1", "ada", entities.ReactionDislike, entities.ReactionLike).Return(nil).Once()
	comment, err = svc.React(ctx, testThreadID, "c1", "ada", entities.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 1, comment.Likes)
	assert.Equal(t, 1, comment.Dislikes)

	_, err = svc.React(ctx, testThreadID, "c1", "ada", entities.ReactionKind("love"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	repo.AssertExpectations(t)
}

func TestDiscussionService_Report(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := discussionFixture(t)
	repo.On("GetComment", mock.Anything, "c1").Return(&entities.Comment{ID: "c1", ThreadID: testThreadID}, nil)
	repo.On("CreateReport", mock.Anything, mock.MatchedBy(func(r *entities.CommentReport) bool {
		return r.CommentID == "c1" && r.Reason == "spam"
	})).Return(nil).Once()

	_, err := svc.Report(ctx, testThreadID, "c1", "ada", " ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	report, err := svc.Report(ctx, testThreadID, "c1", "ada", "spam")
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	repo.AssertExpectations(t)
}

func TestDiscussionService_SummarizeThread(t *testing.T) {
	ctx := context.Background()
	svc, repo, gen := discussionFixture(t)
	parent := "c1"
	repo.On("GetThread", mock.Anything, testThreadID).Return(&entities.DiscussionThread{ID: testThreadID, Title: "Impact on local news"}, nil)
	repo.On("ListComments", mock.Anything, testThreadID).Return([]*entities.Comment{
		{ID: "c1", ThreadID: testThreadID, UserID: "ada", Content: "The Act passed in June 2023."},
		{ID: "c2", ThreadID: testThreadID, ParentID: &parent, UserID: "bob", Content: "Meta blocked news in response."},
	}, nil)
	gen.On("Generate", mock.Anything, threadSummarySystemPrompt, threadSummaryAssistantPrompt, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "ada: The Act passed in June 2023.") && strings.Contains(p, "(reply) bob:")
	})).Return("Summary: Users discuss the Act's passage.\nIt drew platform reactions.\n"+
		"Sentiment: mixed\n"+
		"Fact Checks:\n- The Act passed in June 2023 => True, royal assent was 22 June 2023\n- Meta blocked news => True", nil)
	repo.On("SaveSummary", mock.Anything, mock.Anything).Return(nil).Once()

	summary, err := svc.SummarizeThread(ctx, testThreadID)
	require.NoError(t, err)
	assert.Equal(t, "Users discuss the Act's passage. It drew platform reactions.", summary.Summary)
	assert.Equal(t, "mixed", summary.Sentiment)
	require.Len(t, summary.FactChecks, 2)
	assert.Equal(t, "The Act passed in June 2023", summary.FactChecks[0].Claim)
	assert.Equal(t, "True, royal assent was 22 June 2023", summary.FactChecks[0].Verdict)
	assert.Equal(t, testThreadID, summary.ThreadID)
	repo.AssertExpectations(t)
}

func TestDiscussionService_SummarizeThread_Errors(t *testing.T) {
	ctx := context.Background()
	svc, repo, gen := discussionFixture(t)
	repo.On("GetThread", mock.Anything, testThreadID).Return(&entities.DiscussionThread{ID: testThreadID}, nil)
	repo.On("ListComments", mock.Anything, testThreadID).Return([]*entities.Comment{}, nil).Once()

	_, err := svc.SummarizeThread(ctx, testThreadID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	repo.On("ListComments", mock.Anything, testThreadID).Return([]*entities.Comment{{ID: "c1", Content: "hi"}}, nil)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)
	_, err = svc.SummarizeThread(ctx, testThreadID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	repo.AssertNotCalled(t, "SaveSummary", mock.Anything, mock.Anything)
}

func TestParseThreadSummary_Unlabelled(t *testing.T) {
	summary := parseThreadSummary("People mostly agree with the bill.")
	assert.Equal(t, "People mostly agree with the bill.", summary.Summary)
	assert.Empty(t, summary.FactChecks)

	summary = parseThreadSummary("Summary: ok\nSentiment: neutral\nFact Checks: None")
	assert.Equal(t, "ok", summary.Summary)
	assert.Empty(t, summary.FactChecks)
}

func TestDiscussionService_GetThread(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := discussionFixture(t)
	repo.On("GetThread", mock.Anything, testThreadID).Return(&entities.DiscussionThread{ID: testThreadID}, nil)
	repo.On("ListComments", mock.Anything, testThreadID).Return([]*entities.Comment{{ID: "c1"}}, nil)
	repo.On("GetSummary", mock.Anything, testThreadID).Return(nil, apperrors.NewNotFoundError("no summary"))
	repo.On("GetThread", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("thread missing not found"))

	thread, err := svc.GetThread(ctx, testThreadID)
	require.NoError(t, err)
	assert.Len(t, thread.Comments, 1)
	assert.Nil(t, thread.Summary)

	_, err = svc.GetThread(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
