package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mytegroup/billtracker/internal/api/handlers"
	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	apperrors "github.com/mytegroup/billtracker/pkg/errors"
)

type MockDiscussionManager struct {
	mock.Mock
}

func (m *MockDiscussionManager) CreateThread(ctx context.Context, in services.CreateThreadInput) (*entities.DiscussionThread, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DiscussionThread), args.Error(1)
}

func (m *MockDiscussionManager) ListThreads(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error) {
	args := m.Called(ctx, billHref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DiscussionThread), args.Error(1)
}

func (m *MockDiscussionManager) GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DiscussionThread), args.Error(1)
}

func (m *MockDiscussionManager) PostComment(ctx context.Context, threadID, parentID, userID, content string) (*entities.Comment, error) {
	args := m.Called(ctx, threadID, parentID, userID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Comment), args.Error(1)
}

func (m *MockDiscussionManager) React(ctx context.Context, threadID, commentID, userID string, kind entities.ReactionKind) (*entities.Comment, error) {
	args := m.Called(ctx, threadID, commentID, userID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Comment), args.Error(1)
}

func (m *MockDiscussionManager) Report(ctx context.Context, threadID, commentID, userID, reason string) (*entities.CommentReport, error) {
	args := m.Called(ctx, threadID, commentID, userID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CommentReport), args.Error(1)
}

func (m *MockDiscussionManager) SummarizeThread(ctx context.Context, threadID string) (*entities.ThreadSummary, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ThreadSummary), args.Error(1)
}

func withPath(req *http.Request, values map[string]string) *http.Request {
	for k, v := range values {
		req.SetPathValue(k, v)
	}
	return req
}

func TestDiscussionHandler_CreateThread(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)

	in := services.CreateThreadInput{BillHref: "h1", Title: "Impact on farmers", Description: "Thoughts?", CreatedBy: "u1"}
	service.On("CreateThread", mock.Anything, in).Return(&entities.DiscussionThread{ID: "t1", BillHref: "h1", Title: in.Title}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/threads", strings.NewReader(`{"bill_href":"h1","title":"Impact on farmers","description":"Thoughts?"}`))
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	handler.CreateThread(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"t1"`)
	service.AssertExpectations(t)
}

func TestDiscussionHandler_ListThreads_RequiresBill(t *testing.T) {
	handler := handlers.NewDiscussionHandler(new(MockDiscussionManager), nil)

	w := httptest.NewRecorder()
	handler.ListThreads(w, httptest.NewRequest(http.MethodGet, "/api/threads", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscussionHandler_GetThread_NotFound(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("GetThread", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("thread missing not found"))

	w := httptest.NewRecorder()
	handler.GetThread(w, withPath(httptest.NewRequest(http.MethodGet, "/api/threads/missing", nil), map[string]string{"id": "missing"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscussionHandler_PostReply(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	parent := "c1"
	service.On("PostComment", mock.Anything, "t1", "c1", "u2", "I disagree").Return(&entities.Comment{ID: "c2", ThreadID: "t1", ParentID: &parent}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/comments/c1/replies", strings.NewReader(`{"user_id":"u2","content":"I disagree"}`))
	w := httptest.NewRecorder()
	handler.PostReply(w, withPath(req, map[string]string{"id": "t1", "commentId": "c1"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"parent_id":"c1"`)
}

func TestDiscussionHandler_PostComment_RateLimited(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("PostComment", mock.Anything, "t1", "", "u1", mock.Anything).Return(&entities.Comment{ID: "c"}, nil)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/comments", strings.NewReader(`{"user_id":"u1","content":"hello"}`))
		w := httptest.NewRecorder()
		handler.PostComment(w, withPath(req, map[string]string{"id": "t1"}))
		return w
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusCreated, post().Code)
	}
	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	service.AssertNumberOfCalls(t, "PostComment", 10)
}

func TestDiscussionHandler_PostComment_TooLong(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("PostComment", mock.Anything, "t1", "", "u1", mock.Anything).Return(nil, apperrors.NewValidationError("content exceeds 500 characters"))

	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/comments", strings.NewReader(`{"user_id":"u1","content":"`+strings.Repeat("x", 501)+`"}`))
	w := httptest.NewRecorder()
	handler.PostComment(w, withPath(req, map[string]string{"id": "t1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscussionHandler_React(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("React", mock.Anything, "t1", "c1", "u1", entities.ReactionLike).Return(&entities.Comment{ID: "c1", Likes: 1}, nil).Once()
	service.On("React", mock.Anything, "t1", "c1", "u1", entities.ReactionLike).Return(nil, apperrors.NewConflictError("already liked")).Once()

	react := func(kind string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/comments/c1/"+kind, nil)
		req.Header.Set("X-User-ID", "u1")
		w := httptest.NewRecorder()
		handler.React(w, withPath(req, map[string]string{"id": "t1", "commentId": "c1", "reaction": kind}))
		return w
	}

	w := react("like")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"likes":1`)
	assert.Equal(t, http.StatusConflict, react("like").Code)
	assert.Equal(t, http.StatusNotFound, react("love").Code)
	service.AssertExpectations(t)
}

func TestDiscussionHandler_Report(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("Report", mock.Anything, "t1", "c1", "u3", "spam").Return(&entities.CommentReport{ID: "r1", CommentID: "c1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/comments/c1/report", strings.NewReader(`{"user_id":"u3","reason":"spam"}`))
	w := httptest.NewRecorder()
	handler.Report(w, withPath(req, map[string]string{"id": "t1", "commentId": "c1"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDiscussionHandler_Summarize(t *testing.T) {
	service := new(MockDiscussionManager)
	handler := handlers.NewDiscussionHandler(service, nil)
	service.On("SummarizeThread", mock.Anything, "t1").Return(&entities.ThreadSummary{ThreadID: "t1", Summary: "Mostly supportive.", Sentiment: "positive"}, nil)
	service.On("SummarizeThread", mock.Anything, "t2").Return(nil, apperrors.NewRateLimitedError("generation rate limited", nil))

	w := httptest.NewRecorder()
	handler.Summarize(w, withPath(httptest.NewRequest(http.MethodPost, "/api/threads/t1/summarize", nil), map[string]string{"id": "t1"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sentiment":"positive"`)

	w = httptest.NewRecorder()
	handler.Summarize(w, withPath(httptest.NewRequest(http.MethodPost, "/api/threads/t2/summarize", nil), map[string]string{"id": "t2"}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
