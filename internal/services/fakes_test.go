package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/repository"
	"diaryhub-backend/internal/storage"

	"github.com/stretchr/testify/require"
)

// memDiaryStore is an in-memory DiaryStore that follows the SQL repository's semantics
type memDiaryStore struct {
	mu      sync.Mutex
	rows    map[string]*models.Diary
	seq     map[string]int
	next    int
	users   map[string]string
	failOn  map[string]error
	updates int
}

func newMemDiaryStore() *memDiaryStore {
	return &memDiaryStore{
		rows:   map[string]*models.Diary{},
		seq:    map[string]int{},
		users:  map[string]string{},
		failOn: map[string]error{},
	}
}

func cloneDiary(d *models.Diary) *models.Diary {
	c := *d
	c.Images = slices.Clone(d.Images)
	c.Comments = slices.Clone(d.Comments)
	c.Likes = models.NewLikeSet(d.Likes.IDs())
	return &c
}

func (m *memDiaryStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memDiaryStore) Create(ctx context.Context, d *models.Diary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create"); err != nil {
		return err
	}
	m.next++
	m.seq[d.ID] = m.next
	m.rows[d.ID] = cloneDiary(d)
	return nil
}

func (m *memDiaryStore) GetByID(ctx context.Context, id string) (*models.Diary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("diary %s: %w", id, repository.ErrNotFound)
	}
	c := cloneDiary(d)
	c.OwnerUsername = m.users[d.OwnerID]
	return c, nil
}

func (m *memDiaryStore) List(ctx context.Context, q models.DiaryQuery) ([]*models.Diary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list"); err != nil {
		return nil, err
	}

	var out []*models.Diary
	for _, d := range m.rows {
		if q.OwnerID != "" && d.OwnerID != q.OwnerID {
			continue
		}
		if q.ExcludeOwnerID != "" && d.OwnerID == q.ExcludeOwnerID {
			continue
		}
		if q.PublicOnly && !d.IsPublic {
			continue
		}
		if q.Region != "" && d.Location.State != q.Region {
			continue
		}
		out = append(out, cloneDiary(d))
	}

	slices.SortFunc(out, func(a, b *models.Diary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return m.seq[b.ID] - m.seq[a.ID]
	})

	page := q.Page.Normalize()
	if page.Skip >= len(out) {
		return []*models.Diary{}, nil
	}
	out = out[page.Skip:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (m *memDiaryStore) ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Diary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_all"); err != nil {
		return nil, err
	}
	var out []*models.Diary
	for _, d := range m.rows {
		if d.OwnerID == ownerID {
			out = append(out, cloneDiary(d))
		}
	}
	return out, nil
}

func (m *memDiaryStore) Update(ctx context.Context, d *models.Diary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update"); err != nil {
		return err
	}
	cur, ok := m.rows[d.ID]
	if !ok || cur.OwnerID != d.OwnerID {
		return fmt.Errorf("diary %s: %w", d.ID, repository.ErrNotFound)
	}
	next := cloneDiary(d)
	next.Likes = cur.Likes
	next.Comments = cur.Comments
	next.CreatedAt = cur.CreatedAt
	m.rows[d.ID] = next
	m.updates++
	return nil
}

func (m *memDiaryStore) ReplaceImages(ctx context.Context, diaryID string, imgs []models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("replace_images"); err != nil {
		return err
	}
	d, ok := m.rows[diaryID]
	if !ok {
		return fmt.Errorf("diary %s: %w", diaryID, repository.ErrNotFound)
	}
	d.SetImages(slices.Clone(imgs))
	return nil
}

func (m *memDiaryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("diary %s: %w", id, repository.ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *memDiaryStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_by_owner"); err != nil {
		return 0, err
	}
	var n int64
	for id, d := range m.rows {
		if d.OwnerID == ownerID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memDiaryStore) ToggleLike(ctx context.Context, diaryID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[diaryID]
	if !ok || d.OwnerID == userID {
		return 0, fmt.Errorf("diary %s: %w", diaryID, repository.ErrNotFound)
	}
	d.Likes.Toggle(userID)
	return d.Likes.Len(), nil
}

func (m *memDiaryStore) AppendComment(ctx context.Context, diaryID string, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[diaryID]
	if !ok {
		return fmt.Errorf("diary %s: %w", diaryID, repository.ErrNotFound)
	}
	d.Comments = append(d.Comments, *c)
	return nil
}

func (m *memDiaryStore) UpdateComment(ctx context.Context, diaryID, commentID, authorID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[diaryID]
	if !ok {
		return fmt.Errorf("diary %s: %w", diaryID, repository.ErrNotFound)
	}
	c := d.FindComment(commentID)
	if c == nil || c.AuthorID != authorID {
		return fmt.Errorf("comment %s: %w", commentID, repository.ErrNotFound)
	}
	c.Content = content
	return nil
}

func (m *memDiaryStore) DeleteComment(ctx context.Context, diaryID, commentID, authorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[diaryID]
	if !ok {
		return fmt.Errorf("diary %s: %w", diaryID, repository.ErrNotFound)
	}
	before := len(d.Comments)
	d.Comments = slices.DeleteFunc(d.Comments, func(c models.Comment) bool {
		return c.ID == commentID && c.AuthorID == authorID
	})
	if len(d.Comments) == before {
		return fmt.Errorf("comment %s: %w", commentID, repository.ErrNotFound)
	}
	return nil
}

func (m *memDiaryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// put stores a diary directly, bypassing the service
func (m *memDiaryStore) put(t *testing.T, d *models.Diary) {
	t.Helper()
	if d.Likes == nil {
		d.Likes = models.NewLikeSet(nil)
	}
	require.NoError(t, m.Create(context.Background(), d))
}

// fakeBlobStore records uploads and releases. Blobs named "bad*" fail to upload.
type fakeBlobStore struct {
	mu         sync.Mutex
	n          int
	uploaded   []string
	released   []string
	releaseErr map[string]error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{releaseErr: map[string]error{}}
}

func (f *fakeBlobStore) Upload(ctx context.Context, ownerID string, blob storage.Blob) (models.Image, error) {
	if _, err := io.ReadAll(blob.Data); err != nil {
		return models.Image{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(blob.Filename, "bad") {
		return models.Image{}, errors.New("upload rejected")
	}
	f.n++
	handle := fmt.Sprintf("diaries/%s/%s-%d", ownerID, blob.Filename, f.n)
	f.uploaded = append(f.uploaded, handle)
	return models.Image{URL: "https://blobs.test/" + handle, StorageHandle: handle}, nil
}

func (f *fakeBlobStore) Release(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.releaseErr[handle]; err != nil {
		return err
	}
	f.released = append(f.released, handle)
	return nil
}

func (f *fakeBlobStore) uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.uploaded)
}

func (f *fakeBlobStore) releases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.released)
}

// memUserStore is an in-memory UserStore
type memUserStore struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	lookups int
}

func newMemUserStore(users ...*models.User) *memUserStore {
	s := &memUserStore{byID: map[string]*models.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
	}
	return s
}

func (s *memUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, repository.ErrDuplicate)
		}
	}
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	for _, u := range s.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, repository.ErrNotFound)
}

func (s *memUserStore) UsernamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	names := map[string]string{}
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			names[id] = u.Username
		}
	}
	return names, nil
}

func (s *memUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}

func blobs(names ...string) []storage.Blob {
	out := make([]storage.Blob, len(names))
	for i, n := range names {
		out[i] = storage.Blob{Filename: n, ContentType: "image/jpeg", Data: strings.NewReader("img:" + n)}
	}
	return out
}

func images(handles ...string) []models.Image {
	out := make([]models.Image, len(handles))
	for i, h := range handles {
		out[i] = models.Image{URL: "https://blobs.test/" + h, StorageHandle: h}
	}
	return out
}

// tick returns a clock that advances one minute per call
func tick(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Minute)
		return cur
	}
}

func validInput() DiaryInput {
	return DiaryInput{
		Title:     "Seoul trip",
		Content:   "Walked along the Han river",
		Mood:      "happy",
		Weather:   "sunny",
		State:     "서울",
		DiaryDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		IsPublic:  true,
		Latitude:  37.5665,
		Longitude: 126.978,
	}
}

func requireKind(t *testing.T, want Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, KindOf(err), "unexpected error: %v", err)
}
