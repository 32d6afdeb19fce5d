package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mytegroup/billtracker/internal/application/services"
	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/providers"
)

const (
	commentRateLimit  = 10
	commentRateWindow = time.Minute
)

// DiscussionManager defines the discussion operations used by the handler.
type DiscussionManager interface {
	CreateThread(ctx context.Context, in services.CreateThreadInput) (*entities.DiscussionThread, error)
	ListThreads(ctx context.Context, billHref string) ([]*entities.DiscussionThread, error)
	GetThread(ctx context.Context, id string) (*entities.DiscussionThread, error)
	PostComment(ctx context.Context, threadID, parentID, userID, content string) (*entities.Comment, error)
	React(ctx context.Context, threadID, commentID, userID string, kind entities.ReactionKind) (*entities.Comment, error)
	Report(ctx context.Context, threadID, commentID, userID, reason string) (*entities.CommentReport, error)
	SummarizeThread(ctx context.Context, threadID string) (*entities.ThreadSummary, error)
}

// DiscussionHandler handles bill discussion threads.
type DiscussionHandler struct {
	service  DiscussionManager
	comments *rateLimiter
}

// NewDiscussionHandler creates a new discussion handler. Comment posting is
// rate limited per user through counter, or in memory when counter is nil.
func NewDiscussionHandler(service DiscussionManager, counter providers.CounterProvider) *DiscussionHandler {
	return &DiscussionHandler{
		service:  service,
		comments: newRateLimiter(counter, commentRateLimit, commentRateWindow),
	}
}

// CreateThread handles POST /api/threads
func (h *DiscussionHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var in services.CreateThreadInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.CreatedBy = requestUserID(r, in.CreatedBy)

	thread, err := h.service.CreateThread(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, thread)
}

type threadListResponse struct {
	Threads []*entities.DiscussionThread `json:"threads"`
	Count   int                          `json:"count"`
}

// ListThreads handles GET /api/threads?bill=
func (h *DiscussionHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	billHref := strings.TrimSpace(r.URL.Query().Get("bill"))
	if billHref == "" {
		respondWithError(w, http.StatusBadRequest, "bill is required")
		return
	}

	threads, err := h.service.ListThreads(r.Context(), billHref)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if threads == nil {
		threads = []*entities.DiscussionThread{}
	}
	respondWithJSON(w, http.StatusOK, threadListResponse{Threads: threads, Count: len(threads)})
}

// GetThread handles GET /api/threads/{id}
func (h *DiscussionHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.service.GetThread(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, thread)
}

type commentRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// PostComment handles POST /api/threads/{id}/comments
func (h *DiscussionHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	h.postComment(w, r, "")
}

// PostReply handles POST /api/threads/{id}/comments/{commentId}/replies
func (h *DiscussionHandler) PostReply(w http.ResponseWriter, r *http.Request) {
	h.postComment(w, r, r.PathValue("commentId"))
}

func (h *DiscussionHandler) postComment(w http.ResponseWriter, r *http.Request, parentID string) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := requestUserID(r, req.UserID)

	key := "comments:rate:" + userID
	if userID == "" {
		key = "comments:rate:ip:" + clientIP(r)
	}
	if allowed, retryAfter := h.comments.allow(r.Context(), key); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	comment, err := h.service.PostComment(r.Context(), r.PathValue("id"), parentID, userID, req.Content)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, comment)
}

type reactionRequest struct {
	UserID string `json:"user_id"`
}

// React handles POST /api/threads/{id}/comments/{commentId}/{reaction}
func (h *DiscussionHandler) React(w http.ResponseWriter, r *http.Request) {
	kind := entities.ReactionKind(r.PathValue("reaction"))
	if !kind.Valid() {
		respondWithError(w, http.StatusNotFound, "unknown reaction")
		return
	}

	var req reactionRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	comment, err := h.service.React(r.Context(), r.PathValue("id"), r.PathValue("commentId"), requestUserID(r, req.UserID), kind)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, comment)
}

type reportRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Report handles POST /api/threads/{id}/comments/{commentId}/report
func (h *DiscussionHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.service.Report(r.Context(), r.PathValue("id"), r.PathValue("commentId"), requestUserID(r, req.UserID), req.Reason)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, report)
}

// Summarize handles POST /api/threads/{id}/summarize
func (h *DiscussionHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SummarizeThread(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
