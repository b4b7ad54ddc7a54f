package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"diaryhub-backend/internal/middleware"
	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/services"
	"diaryhub-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// MockDiaryService implements DiaryService
type MockDiaryService struct {
	MockCreate        func(ctx context.Context, ownerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error)
	MockUpdate        func(ctx context.Context, diaryID, callerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error)
	MockDelete        func(ctx context.Context, diaryID, callerID string) error
	MockToggleLike    func(ctx context.Context, diaryID, callerID string) (int, error)
	MockAddComment    func(ctx context.Context, diaryID, authorID, content string) (*models.Comment, error)
	MockUpdateComment func(ctx context.Context, diaryID, commentID, callerID, content string) (*models.Comment, error)
	MockDeleteComment func(ctx context.Context, diaryID, commentID, callerID string) error
}

func (m *MockDiaryService) Create(ctx context.Context, ownerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error) {
	if m.MockCreate != nil {
		return m.MockCreate(ctx, ownerID, in, blobs)
	}
	return &models.Diary{}, nil
}

func (m *MockDiaryService) Update(ctx context.Context, diaryID, callerID string, in services.DiaryInput, blobs []storage.Blob) (*models.Diary, error) {
	if m.MockUpdate != nil {
		return m.MockUpdate(ctx, diaryID, callerID, in, blobs)
	}
	return &models.Diary{}, nil
}

func (m *MockDiaryService) Delete(ctx context.Context, diaryID, callerID string) error {
	if m.MockDelete != nil {
		return m.MockDelete(ctx, diaryID, callerID)
	}
	return nil
}

func (m *MockDiaryService) ToggleLike(ctx context.Context, diaryID, callerID string) (int, error) {
	if m.MockToggleLike != nil {
		return m.MockToggleLike(ctx, diaryID, callerID)
	}
	return 0, nil
}

func (m *MockDiaryService) AddComment(ctx context.Context, diaryID, authorID, content string) (*models.Comment, error) {
	if m.MockAddComment != nil {
		return m.MockAddComment(ctx, diaryID, authorID, content)
	}
	return &models.Comment{}, nil
}

func (m *MockDiaryService) UpdateComment(ctx context.Context, diaryID, commentID, callerID, content string) (*models.Comment, error) {
	if m.MockUpdateComment != nil {
		return m.MockUpdateComment(ctx, diaryID, commentID, callerID, content)
	}
	return &models.Comment{}, nil
}

func (m *MockDiaryService) DeleteComment(ctx context.Context, diaryID, commentID, callerID string) error {
	if m.MockDeleteComment != nil {
		return m.MockDeleteComment(ctx, diaryID, commentID, callerID)
	}
	return nil
}

// MockFeedService implements FeedService
type MockFeedService struct {
	MockMyDiaries         func(ctx context.Context, ownerID string, page models.Page) ([]*models.Diary, error)
	MockPublicDiaries     func(ctx context.Context, callerID, region string, page models.Page) ([]*models.Diary, error)
	MockDiariesByUsername func(ctx context.Context, username string, page models.Page) ([]*models.Diary, error)
	MockDiariesByUserID   func(ctx context.Context, userID string, page models.Page) ([]*models.Diary, error)
	MockDiaryByID         func(ctx context.Context, id, callerID string) (*models.Diary, error)
	MockCommentsOf        func(ctx context.Context, diaryID, callerID string) ([]models.CommentView, error)
}

func (m *MockFeedService) MyDiaries(ctx context.Context, ownerID string, page models.Page) ([]*models.Diary, error) {
	if m.MockMyDiaries != nil {
		return m.MockMyDiaries(ctx, ownerID, page)
	}
	return []*models.Diary{}, nil
}

func (m *MockFeedService) PublicDiaries(ctx context.Context, callerID, region string, page models.Page) ([]*models.Diary, error) {
	if m.MockPublicDiaries != nil {
		return m.MockPublicDiaries(ctx, callerID, region, page)
	}
	return []*models.Diary{}, nil
}

func (m *MockFeedService) DiariesByUsername(ctx context.Context, username string, page models.Page) ([]*models.Diary, error) {
	if m.MockDiariesByUsername != nil {
		return m.MockDiariesByUsername(ctx, username, page)
	}
	return []*models.Diary{}, nil
}

func (m *MockFeedService) DiariesByUserID(ctx context.Context, userID string, page models.Page) ([]*models.Diary, error) {
	if m.MockDiariesByUserID != nil {
		return m.MockDiariesByUserID(ctx, userID, page)
	}
	return []*models.Diary{}, nil
}

func (m *MockFeedService) DiaryByID(ctx context.Context, id, callerID string) (*models.Diary, error) {
	if m.MockDiaryByID != nil {
		return m.MockDiaryByID(ctx, id, callerID)
	}
	return &models.Diary{}, nil
}

func (m *MockFeedService) CommentsOf(ctx context.Context, diaryID, callerID string) ([]models.CommentView, error) {
	if m.MockCommentsOf != nil {
		return m.MockCommentsOf(ctx, diaryID, callerID)
	}
	return []models.CommentView{}, nil
}

// MockAccountService implements AccountService
type MockAccountService struct {
	MockSignup        func(ctx context.Context, username, password string) (*models.User, error)
	MockLogin         func(ctx context.Context, username, password string) (string, error)
	MockDeleteAccount func(ctx context.Context, userID string) error
}

func (m *MockAccountService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	if m.MockSignup != nil {
		return m.MockSignup(ctx, username, password)
	}
	return &models.User{}, nil
}

func (m *MockAccountService) Login(ctx context.Context, username, password string) (string, error) {
	if m.MockLogin != nil {
		return m.MockLogin(ctx, username, password)
	}
	return "", nil
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, userID string) error {
	if m.MockDeleteAccount != nil {
		return m.MockDeleteAccount(ctx, userID)
	}
	return nil
}

const testUserHeader = "X-Test-User"

// withTestUser authenticates requests that carry the test user header
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(testUserHeader); id != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func setupRouter(diaries DiaryService, feed FeedService, accounts AccountService) http.Handler {
	return setupRouterWithHandler(NewDiaryHandler(diaries, 8, 16, 10), feed, accounts)
}

func setupRouterWithHandler(dh *DiaryHandler, feed FeedService, accounts AccountService) http.Handler {
	fh := NewFeedHandler(feed)
	uh := NewUserHandler(accounts)

	r := chi.NewRouter()
	r.Use(withTestUser)
	r.Post("/auth/signup", uh.Signup)
	r.Post("/auth/login", uh.Login)
	r.Delete("/auth/delete", uh.DeleteAccount)

	r.Route("/diaries", func(r chi.Router) {
		r.Post("/", dh.CreateDiary)
		r.Get("/my-diaries", fh.MyDiaries)
		r.Get("/public-diaries", fh.PublicDiaries)
		r.Get("/public-diaries/{username}", fh.DiariesByUsername)
		r.Get("/friend/{friendId}", fh.FriendDiaries)
		r.Post("/like/{id}", dh.ToggleLike)
		r.Get("/{id}", fh.GetDiary)
		r.Put("/{id}", dh.UpdateDiary)
		r.Delete("/{id}", dh.DeleteDiary)
		r.Get("/{id}/comments", fh.GetComments)
		r.Post("/{id}/comments", dh.AddComment)
		r.Put("/{id}/comments/{commentId}", dh.UpdateComment)
		r.Delete("/{id}/comments/{commentId}", dh.DeleteComment)
	})
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type formFile struct {
	name string
	data []byte
}

// multipartBody builds a diary form with the given fields and files under "images"
func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(imagesField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func diaryFields() map[string]string {
	return map[string]string{
		"title":     "Seoul trip",
		"content":   "Walked along the Han river",
		"mood":      "happy",
		"weather":   "sunny",
		"diaryDate": "2024-05-01",
		"isPublic":  "true",
		"state":     "서울",
		"latitude":  "37.5665",
		"longitude": "126.978",
	}
}
