package models

import (
	"encoding/json"
	"slices"
	"time"
)

// User represents an account in the user directory
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location tags a diary with a region label and a point
type Location struct {
	State       string      `json:"state"`
	Coordinates Coordinates `json:"coordinates"`
}

// Image is an attachment stored in the object store. StorageHandle is the key used to release it.
type Image struct {
	URL           string `json:"url"`
	StorageHandle string `json:"storage_handle"`
}

// Comment is embedded in a diary; its ID only means something inside that diary
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentView is a comment with its author resolved for display
type CommentView struct {
	Comment
	AuthorUsername string `json:"author_username"`
}

// Diary is the aggregate root: it exclusively owns its images, comments and likes
type Diary struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	OwnerUsername string    `json:"owner_username,omitempty"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Images        []Image   `json:"images"`
	Thumbnail     string    `json:"thumbnail"`
	Location      Location  `json:"location"`
	Mood          string    `json:"mood"`
	Weather       string    `json:"weather"`
	DiaryDate     time.Time `json:"diary_date"`
	IsPublic      bool      `json:"is_public"`
	Likes         LikeSet   `json:"likes"`
	Comments      []Comment `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
}

// FindComment returns the comment with the given id, or nil
func (d *Diary) FindComment(commentID string) *Comment {
	for i := range d.Comments {
		if d.Comments[i].ID == commentID {
			return &d.Comments[i]
		}
	}
	return nil
}

// StorageHandles lists the object store keys of every attached image
func (d *Diary) StorageHandles() []string {
	handles := make([]string, 0, len(d.Images))
	for _, img := range d.Images {
		handles = append(handles, img.StorageHandle)
	}
	return handles
}

// SetImages replaces the attachment list and keeps the thumbnail pointing at the first image
func (d *Diary) SetImages(images []Image) {
	d.Images = images
	d.Thumbnail = ""
	if len(images) > 0 {
		d.Thumbnail = images[0].URL
	}
}

// LikeSet is the set of user ids that liked a diary
type LikeSet map[string]struct{}

// NewLikeSet builds a set from a list, dropping duplicates
func NewLikeSet(ids []string) LikeSet {
	s := make(LikeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s LikeSet) Has(userID string) bool {
	_, ok := s[userID]
	return ok
}

// Toggle adds the user when absent and removes it otherwise. It returns true when the user is now a member.
func (s LikeSet) Toggle(userID string) bool {
	if s.Has(userID) {
		delete(s, userID)
		return false
	}
	s[userID] = struct{}{}
	return true
}

// Len is the number of likes
func (s LikeSet) Len() int {
	return len(s)
}

// IDs returns the members in sorted order
func (s LikeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarshalJSON renders the set as a JSON array
func (s LikeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON reads a JSON array into the set
func (s *LikeSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewLikeSet(ids)
	return nil
}

// Page is an offset window over a newest-first result set
type Page struct {
	Skip  int
	Limit int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize clamps the window to valid values
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// DiaryQuery selects diaries for a listing. Zero-valued fields do not filter.
type DiaryQuery struct {
	OwnerID        string
	ExcludeOwnerID string
	PublicOnly     bool
	Region         string
	Page           Page
}
