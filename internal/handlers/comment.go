package handlers

import (
	"encoding/json"
	"net/http"

	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CommentRequest is the body of comment create and update requests
type CommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse wraps an edited comment
type CommentResponse struct {
	Message string          `json:"message"`
	Comment *models.Comment `json:"comment"`
}

func decodeComment(w http.ResponseWriter, r *http.Request) (CommentRequest, bool) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// AddComment handles POST /diaries/{id}/comments
func (h *DiaryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")

	req, ok := decodeComment(w, r)
	if !ok {
		return
	}

	comment, err := h.diaryService.AddComment(ctx, diaryID, userID, req.Content)
	if err != nil {
		writeServiceError(w, r, err, "Failed to add comment")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("diary_id", diaryID).
		Str("comment_id", comment.ID).
		Msg("Comment added")

	respondJSON(w, http.StatusCreated, comment)
}

// UpdateComment handles PUT /diaries/{id}/comments/{commentId}
func (h *DiaryHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentId")

	req, ok := decodeComment(w, r)
	if !ok {
		return
	}

	comment, err := h.diaryService.UpdateComment(ctx, diaryID, commentID, userID, req.Content)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update comment")
		return
	}

	respondJSON(w, http.StatusOK, CommentResponse{Message: "Comment updated", Comment: comment})
}

// DeleteComment handles DELETE /diaries/{id}/comments/{commentId}
func (h *DiaryHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentId")

	if err := h.diaryService.DeleteComment(ctx, diaryID, commentID, userID); err != nil {
		writeServiceError(w, r, err, "Failed to delete comment")
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}
