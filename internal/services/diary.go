package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/repository"
	"diaryhub-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DiaryStore persists diaries with their embedded comments and likes
type DiaryStore interface {
	Create(ctx context.Context, diary *models.Diary) error
	GetByID(ctx context.Context, id string) (*models.Diary, error)
	List(ctx context.Context, q models.DiaryQuery) ([]*models.Diary, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Diary, error)
	Update(ctx context.Context, diary *models.Diary) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	ToggleLike(ctx context.Context, diaryID, userID string) (int, error)
	AppendComment(ctx context.Context, diaryID string, comment *models.Comment) error
	UpdateComment(ctx context.Context, diaryID, commentID, authorID, content string) error
	DeleteComment(ctx context.Context, diaryID, commentID, authorID string) error
	ReplaceImages(ctx context.Context, diaryID string, images []models.Image) error
}

// DiaryInput holds the owner-editable fields of a diary
type DiaryInput struct {
	Title     string    `json:"title" validate:"required,max=200"`
	Content   string    `json:"content" validate:"required"`
	Mood      string    `json:"mood" validate:"required,max=50"`
	Weather   string    `json:"weather" validate:"required,max=50"`
	State     string    `json:"state" validate:"required,max=50"`
	DiaryDate time.Time `json:"diaryDate" validate:"required"`
	IsPublic  bool      `json:"isPublic"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

func (in DiaryInput) clean() DiaryInput {
	in.Title = cleanText(in.Title)
	in.Content = cleanText(in.Content)
	in.Mood = cleanText(in.Mood)
	in.Weather = cleanText(in.Weather)
	in.State = cleanText(in.State)
	return in
}

func (in DiaryInput) applyTo(d *models.Diary) {
	d.Title = in.Title
	d.Content = in.Content
	d.Mood = in.Mood
	d.Weather = in.Weather
	d.DiaryDate = in.DiaryDate
	d.IsPublic = in.IsPublic
	d.Location = models.Location{
		State: in.State,
		Coordinates: models.Coordinates{
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
		},
	}
}

type commentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// DiaryService handles diary-related business logic
type DiaryService struct {
	diaries     DiaryStore
	attachments *Attachments
	maxImages   int
	now         func() time.Time
}

// NewDiaryService creates a new diary service
func NewDiaryService(diaries DiaryStore, attachments *Attachments, maxImages int) *DiaryService {
	return &DiaryService{
		diaries:     diaries,
		attachments: attachments,
		maxImages:   maxImages,
		now:         time.Now,
	}
}

func (s *DiaryService) checkBlobCount(blobs []storage.Blob) error {
	if s.maxImages > 0 && len(blobs) > s.maxImages {
		return validationError(fmt.Sprintf("at most %d images are allowed", s.maxImages))
	}
	return nil
}

// loadOwned fetches a diary and checks that callerID owns it
func (s *DiaryService) loadOwned(ctx context.Context, diaryID, callerID, action string) (*models.Diary, error) {
	diary, err := s.diaries.GetByID(ctx, diaryID)
	if err != nil {
		return nil, storeError(err, "diary not found", "failed to get diary")
	}
	if diary.OwnerID != callerID {
		return nil, forbiddenError(fmt.Sprintf("only the owner can %s this diary", action))
	}
	return diary, nil
}

// Create uploads the blobs and stores a new diary owned by ownerID
func (s *DiaryService) Create(ctx context.Context, ownerID string, in DiaryInput, blobs []storage.Blob) (*models.Diary, error) {
	in = in.clean()
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if len(blobs) == 0 {
		return nil, validationError("at least one image is required")
	}
	if err := s.checkBlobCount(blobs); err != nil {
		return nil, err
	}

	images, err := s.attachments.UploadAll(ctx, ownerID, blobs)
	if err != nil {
		return nil, err
	}

	diary := &models.Diary{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Likes:     models.NewLikeSet(nil),
		Comments:  []models.Comment{},
		CreatedAt: s.now(),
	}
	in.applyTo(diary)
	diary.SetImages(images)

	if err := s.diaries.Create(ctx, diary); err != nil {
		s.attachments.Discard(ctx, images)
		return nil, internalError("failed to create diary", err)
	}

	return diary, nil
}

// Update overwrites the diary's fields. Non-empty blobs replace every existing image.
// Ownership is checked before the submitted fields.
func (s *DiaryService) Update(ctx context.Context, diaryID, callerID string, in DiaryInput, blobs []storage.Blob) (*models.Diary, error) {
	current, err := s.loadOwned(ctx, diaryID, callerID, "update")
	if err != nil {
		return nil, err
	}

	in = in.clean()
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkBlobCount(blobs); err != nil {
		return nil, err
	}

	updated := *current
	in.applyTo(&updated)

	var fresh []models.Image
	if len(blobs) > 0 {
		fresh, err = s.attachments.UploadAll(ctx, callerID, blobs)
		if err != nil {
			return nil, err
		}
		if err := s.attachments.ReleaseAll(ctx, current.Images); err != nil {
			s.attachments.Discard(ctx, fresh)
			return nil, err
		}
		updated.SetImages(fresh)
	}

	if err := s.diaries.Update(ctx, &updated); err != nil {
		if len(fresh) > 0 {
			s.repointImages(ctx, diaryID, fresh)
		}
		return nil, storeError(err, "diary not found", "failed to update diary")
	}

	return &updated, nil
}

// repointImages runs after a failed update whose previous images are already
// released: the stored diary must not keep referring to them.
func (s *DiaryService) repointImages(ctx context.Context, diaryID string, fresh []models.Image) {
	err := s.diaries.ReplaceImages(context.WithoutCancel(ctx), diaryID, fresh)
	if err == nil {
		log.Warn().
			Str("diary_id", diaryID).
			Int("images", len(fresh)).
			Msg("Diary update failed, images switched to the new uploads")
		return
	}

	s.attachments.Discard(ctx, fresh)
	if !errors.Is(err, repository.ErrNotFound) {
		log.Error().
			Err(err).
			Str("diary_id", diaryID).
			Msg("Diary still refers to released images")
	}
}

// Delete releases every image of the diary and then removes it.
// Nothing is deleted if a release fails.
func (s *DiaryService) Delete(ctx context.Context, diaryID, callerID string) error {
	diary, err := s.loadOwned(ctx, diaryID, callerID, "delete")
	if err != nil {
		return err
	}

	if err := s.attachments.ReleaseAll(ctx, diary.Images); err != nil {
		return err
	}

	if err := s.diaries.Delete(ctx, diaryID); err != nil {
		return storeError(err, "diary not found", "failed to delete diary")
	}
	return nil
}

// ToggleLike adds callerID to the diary's likes, or removes it when already present,
// and returns the resulting like count
func (s *DiaryService) ToggleLike(ctx context.Context, diaryID, callerID string) (int, error) {
	diary, err := s.diaries.GetByID(ctx, diaryID)
	if err != nil {
		return 0, storeError(err, "diary not found", "failed to get diary")
	}
	if diary.OwnerID == callerID {
		return 0, forbiddenError("you cannot like your own diary")
	}

	count, err := s.diaries.ToggleLike(ctx, diaryID, callerID)
	if err != nil {
		return 0, storeError(err, "diary not found", "failed to toggle like")
	}
	return count, nil
}

// AddComment appends a comment by authorID to the diary
func (s *DiaryService) AddComment(ctx context.Context, diaryID, authorID, content string) (*models.Comment, error) {
	in := commentInput{Content: cleanText(content)}
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Content:   in.Content,
		CreatedAt: s.now(),
	}

	if err := s.diaries.AppendComment(ctx, diaryID, comment); err != nil {
		return nil, storeError(err, "diary not found", "failed to add comment")
	}
	return comment, nil
}

// loadAuthored resolves a comment inside its diary and checks that callerID wrote it
func (s *DiaryService) loadAuthored(ctx context.Context, diaryID, commentID, callerID, action string) (*models.Comment, error) {
	diary, err := s.diaries.GetByID(ctx, diaryID)
	if err != nil {
		return nil, storeError(err, "diary not found", "failed to get diary")
	}
	comment := diary.FindComment(commentID)
	if comment == nil {
		return nil, notFoundError("comment not found")
	}
	if comment.AuthorID != callerID {
		return nil, forbiddenError(fmt.Sprintf("only the author can %s this comment", action))
	}
	return comment, nil
}

// UpdateComment replaces the content of a comment written by callerID
func (s *DiaryService) UpdateComment(ctx context.Context, diaryID, commentID, callerID, content string) (*models.Comment, error) {
	in := commentInput{Content: cleanText(content)}
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	comment, err := s.loadAuthored(ctx, diaryID, commentID, callerID, "update")
	if err != nil {
		return nil, err
	}

	if err := s.diaries.UpdateComment(ctx, diaryID, commentID, callerID, in.Content); err != nil {
		return nil, storeError(err, "comment not found", "failed to update comment")
	}

	comment.Content = in.Content
	return comment, nil
}

// DeleteComment removes a comment written by callerID
func (s *DiaryService) DeleteComment(ctx context.Context, diaryID, commentID, callerID string) error {
	if _, err := s.loadAuthored(ctx, diaryID, commentID, callerID, "delete"); err != nil {
		return err
	}

	if err := s.diaries.DeleteComment(ctx, diaryID, commentID, callerID); err != nil {
		return storeError(err, "comment not found", "failed to delete comment")
	}
	return nil
}
