package handlers

import (
	"context"
	"errors"
	"net/http"

	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/services"
	"diaryhub-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// DiaryService is the write side used by DiaryHandler
type DiaryService interface {
	Create(ctx context.Context, ownerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error)
	Update(ctx context.Context, diaryID, callerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error)
	Delete(ctx context.Context, diaryID, callerID string) error
	ToggleLike(ctx context.Context, diaryID, callerID string) (int, error)
	AddComment(ctx context.Context, diaryID, authorID, content string) (*models.Comment, error)
	UpdateComment(ctx context.Context, diaryID, commentID, callerID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, diaryID, commentID, callerID string) error
}

// LikeResponse reports the like count after a toggle
type LikeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}

// DiaryHandler handles diary-related HTTP requests
type DiaryHandler struct {
	diaryService DiaryService
	maxMemory    int64
	maxBody      int64
	maxImages    int
}

// NewDiaryHandler creates a new diary handler
func NewDiaryHandler(diaryService DiaryService, maxMemoryMB, maxRequestMB, maxImages int) *DiaryHandler {
	return &DiaryHandler{
		diaryService: diaryService,
		maxMemory:    int64(maxMemoryMB) << 20,
		maxBody:      int64(maxRequestMB) << 20,
		maxImages:    maxImages,
	}
}

func (h *DiaryHandler) readForm(w http.ResponseWriter, r *http.Request) (*diaryForm, bool) {
	form, err := parseDiaryForm(w, r, h.maxMemory, h.maxBody, h.maxImages)
	if err != nil {
		var fe *formError
		if errors.As(err, &fe) {
			respondError(w, fe.msg, fe.statusCode())
			return nil, false
		}
		respondError(w, "Invalid request", http.StatusBadRequest)
		return nil, false
	}
	return form, true
}

// CreateDiary handles POST /diaries
func (h *DiaryHandler) CreateDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	diary, err := h.diaryService.Create(ctx, userID, form.input, form.blobs)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create diary")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("diary_id", diary.ID).
		Int("images", len(diary.Images)).
		Msg("Diary created")

	respondJSON(w, http.StatusCreated, diary)
}

// UpdateDiary handles PUT /diaries/{id}
func (h *DiaryHandler) UpdateDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	diary, err := h.diaryService.Update(ctx, diaryID, userID, form.input, form.blobs)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update diary")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("diary_id", diaryID).
		Bool("images_replaced", len(form.blobs) > 0).
		Msg("Diary updated")

	respondJSON(w, http.StatusOK, diary)
}

// DeleteDiary handles DELETE /diaries/{id}
func (h *DiaryHandler) DeleteDiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")

	if err := h.diaryService.Delete(ctx, diaryID, userID); err != nil {
		writeServiceError(w, r, err, "Failed to delete diary")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("diary_id", diaryID).
		Msg("Diary deleted")

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Diary deleted"})
}

// ToggleLike handles POST /diaries/like/{id}
func (h *DiaryHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	diaryID := chi.URLParam(r, "id")

	count, err := h.diaryService.ToggleLike(ctx, diaryID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to toggle like")
		return
	}

	respondJSON(w, http.StatusOK, LikeResponse{Message: "Like toggled", Likes: count})
}
