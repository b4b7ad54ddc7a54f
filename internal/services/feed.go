package services

import (
	"context"

	"diaryhub-backend/internal/models"
)

// DiaryReader is the read side of DiaryStore
type DiaryReader interface {
	GetByID(ctx context.Context, id string) (*models.Diary, error)
	List(ctx context.Context, q models.DiaryQuery) ([]*models.Diary, error)
}

// UserDirectory resolves users for display and lookup
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
}

// FeedService answers which diaries a caller can see. An empty callerID is an anonymous caller.
type FeedService struct {
	diaries    DiaryReader
	users      UserDirectory
	allRegions string
}

// NewFeedService creates a new feed service. allRegions is the region value that disables region filtering.
func NewFeedService(diaries DiaryReader, users UserDirectory, allRegions string) *FeedService {
	return &FeedService{
		diaries:    diaries,
		users:      users,
		allRegions: allRegions,
	}
}

func (s *FeedService) list(ctx context.Context, q models.DiaryQuery) ([]*models.Diary, error) {
	q.Page = q.Page.Normalize()
	diaries, err := s.diaries.List(ctx, q)
	if err != nil {
		return nil, internalError("failed to list diaries", err)
	}
	return diaries, nil
}

// MyDiaries lists every diary of ownerID, private ones included
func (s *FeedService) MyDiaries(ctx context.Context, ownerID string, page models.Page) ([]*models.Diary, error) {
	return s.list(ctx, models.DiaryQuery{OwnerID: ownerID, Page: page})
}

// PublicDiaries lists public diaries, optionally in one region. An authenticated
// caller never sees their own diaries here.
func (s *FeedService) PublicDiaries(ctx context.Context, callerID, region string, page models.Page) ([]*models.Diary, error) {
	q := models.DiaryQuery{
		PublicOnly:     true,
		ExcludeOwnerID: callerID,
		Page:           page,
	}
	if region != "" && region != s.allRegions {
		q.Region = region
	}
	return s.list(ctx, q)
}

// DiariesByUsername lists the public diaries of the named user
func (s *FeedService) DiariesByUsername(ctx context.Context, username string, page models.Page) ([]*models.Diary, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeError(err, "user not found", "failed to get user")
	}
	return s.DiariesByUserID(ctx, user.ID, page)
}

// DiariesByUserID lists the public diaries of a user id
func (s *FeedService) DiariesByUserID(ctx context.Context, userID string, page models.Page) ([]*models.Diary, error) {
	return s.list(ctx, models.DiaryQuery{OwnerID: userID, PublicOnly: true, Page: page})
}

// DiaryByID returns one diary. A private diary is only visible to its owner.
func (s *FeedService) DiaryByID(ctx context.Context, id, callerID string) (*models.Diary, error) {
	diary, err := s.diaries.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "diary not found", "failed to get diary")
	}
	if !diary.IsPublic && diary.OwnerID != callerID {
		return nil, notFoundError("diary not found")
	}
	return diary, nil
}

// CommentsOf returns the diary's comments in posting order with author usernames resolved.
// Authors that no longer exist get an empty username.
func (s *FeedService) CommentsOf(ctx context.Context, diaryID, callerID string) ([]models.CommentView, error) {
	diary, err := s.DiaryByID(ctx, diaryID, callerID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(diary.Comments))
	var authorIDs []string
	for _, c := range diary.Comments {
		if _, ok := seen[c.AuthorID]; ok {
			continue
		}
		seen[c.AuthorID] = struct{}{}
		authorIDs = append(authorIDs, c.AuthorID)
	}

	names, err := s.users.Usernames(ctx, authorIDs)
	if err != nil {
		return nil, internalError("failed to resolve comment authors", err)
	}

	views := make([]models.CommentView, 0, len(diary.Comments))
	for _, c := range diary.Comments {
		views = append(views, models.CommentView{Comment: c, AuthorUsername: names[c.AuthorID]})
	}
	return views, nil
}
