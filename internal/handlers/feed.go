package handlers

import (
	"context"
	"net/http"

	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/models"

	"github.com/go-chi/chi/v5"
)

// FeedService is the read side used by FeedHandler. An empty callerID is anonymous.
type FeedService interface {
	MyDiaries(ctx context.Context, ownerID string, page models.Page) ([]*models.Diary, error)
	PublicDiaries(ctx context.Context, callerID, region string, page models.Page) ([]*models.Diary, error)
	DiariesByUsername(ctx context.Context, username string, page models.Page) ([]*models.Diary, error)
	DiariesByUserID(ctx context.Context, userID string, page models.Page) ([]*models.Diary, error)
	DiaryByID(ctx context.Context, id, callerID string) (*models.Diary, error)
	CommentsOf(ctx context.Context, diaryID, callerID string) ([]models.CommentView, error)
}

// FeedHandler serves diary listings and lookups
type FeedHandler struct {
	feedService FeedService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// MyDiaries handles GET /diaries/my-diaries
func (h *FeedHandler) MyDiaries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	diaries, err := h.feedService.MyDiaries(r.Context(), userID, parsePage(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get my diaries")
		return
	}
	respondJSON(w, http.StatusOK, diaries)
}

// PublicDiaries handles GET /diaries/public-diaries
func (h *FeedHandler) PublicDiaries(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserIDFrom(r.Context())
	region := r.URL.Query().Get("state")

	diaries, err := h.feedService.PublicDiaries(r.Context(), callerID, region, parsePage(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get public diaries")
		return
	}
	respondJSON(w, http.StatusOK, diaries)
}

// DiariesByUsername handles GET /diaries/public-diaries/{username}
func (h *FeedHandler) DiariesByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	diaries, err := h.feedService.DiariesByUsername(r.Context(), username, parsePage(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get diaries by username")
		return
	}
	respondJSON(w, http.StatusOK, diaries)
}

// FriendDiaries handles GET /diaries/friend/{friendId}
func (h *FeedHandler) FriendDiaries(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "friendId")

	diaries, err := h.feedService.DiariesByUserID(r.Context(), friendID, parsePage(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get friend diaries")
		return
	}
	respondJSON(w, http.StatusOK, diaries)
}

// GetDiary handles GET /diaries/{id}
func (h *FeedHandler) GetDiary(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserIDFrom(r.Context())

	diary, err := h.feedService.DiaryByID(r.Context(), chi.URLParam(r, "id"), callerID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get diary")
		return
	}
	respondJSON(w, http.StatusOK, diary)
}

// GetComments handles GET /diaries/{id}/comments
func (h *FeedHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserIDFrom(r.Context())

	comments, err := h.feedService.CommentsOf(r.Context(), chi.URLParam(r, "id"), callerID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get comments")
		return
	}
	respondJSON(w, http.StatusOK, comments)
}
