package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"diaryhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const diaryColumns = `
	d.id, d.owner_id, COALESCE(u.username, ''), d.title, d.content, d.images, d.thumbnail,
	d.state, d.latitude, d.longitude, d.mood, d.weather, d.diary_date, d.is_public,
	d.likes, d.comments, d.created_at`

// DiaryRepository handles database operations for diaries and their embedded comments and likes
type DiaryRepository struct {
	db *pgxpool.Pool
}

// NewDiaryRepository creates a new diary repository
func NewDiaryRepository(db *pgxpool.Pool) *DiaryRepository {
	return &DiaryRepository{db: db}
}

func scanDiary(row pgx.Row) (*models.Diary, error) {
	var d models.Diary
	var likes []string
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.OwnerUsername, &d.Title, &d.Content, &d.Images, &d.Thumbnail,
		&d.Location.State, &d.Location.Coordinates.Latitude, &d.Location.Coordinates.Longitude,
		&d.Mood, &d.Weather, &d.DiaryDate, &d.IsPublic,
		&likes, &d.Comments, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Likes = models.NewLikeSet(likes)
	if d.Images == nil {
		d.Images = []models.Image{}
	}
	if d.Comments == nil {
		d.Comments = []models.Comment{}
	}
	return &d, nil
}

// Create creates a new diary
func (r *DiaryRepository) Create(ctx context.Context, diary *models.Diary) error {
	query := `
		INSERT INTO diaries (
			id, owner_id, title, content, images, thumbnail, state, latitude, longitude,
			mood, weather, diary_date, is_public, likes, comments, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		diary.ID, diary.OwnerID, diary.Title, diary.Content, diary.Images, diary.Thumbnail,
		diary.Location.State, diary.Location.Coordinates.Latitude, diary.Location.Coordinates.Longitude,
		diary.Mood, diary.Weather, diary.DiaryDate, diary.IsPublic,
		diary.Likes.IDs(), commentsOrEmpty(diary.Comments), diary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diary: %w", err)
	}
	return nil
}

// GetByID retrieves a diary by ID
func (r *DiaryRepository) GetByID(ctx context.Context, id string) (*models.Diary, error) {
	query := `SELECT ` + diaryColumns + `
		FROM diaries d
		LEFT JOIN users u ON u.id = d.owner_id
		WHERE d.id = $1
	`
	diary, err := scanDiary(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("diary %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get diary: %w", err)
	}
	return diary, nil
}

// List retrieves diaries matching the query, newest first
func (r *DiaryRepository) List(ctx context.Context, q models.DiaryQuery) ([]*models.Diary, error) {
	var conds []string
	var args []any
	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.OwnerID != "" {
		conds = append(conds, "d.owner_id = "+addArg(q.OwnerID))
	}
	if q.ExcludeOwnerID != "" {
		conds = append(conds, "d.owner_id <> "+addArg(q.ExcludeOwnerID))
	}
	if q.PublicOnly {
		conds = append(conds, "d.is_public = TRUE")
	}
	if q.Region != "" {
		conds = append(conds, "d.state = "+addArg(q.Region))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	page := q.Page.Normalize()
	query := `SELECT ` + diaryColumns + `
		FROM diaries d
		LEFT JOIN users u ON u.id = d.owner_id
		` + where + `
		ORDER BY d.created_at DESC, d.seq DESC
		LIMIT ` + addArg(page.Limit) + ` OFFSET ` + addArg(page.Skip)

	return r.queryDiaries(ctx, query, args...)
}

// ListAllByOwner retrieves every diary of an owner regardless of visibility
func (r *DiaryRepository) ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Diary, error) {
	query := `SELECT ` + diaryColumns + `
		FROM diaries d
		LEFT JOIN users u ON u.id = d.owner_id
		WHERE d.owner_id = $1
		ORDER BY d.created_at DESC, d.seq DESC
	`
	return r.queryDiaries(ctx, query, ownerID)
}

func (r *DiaryRepository) queryDiaries(ctx context.Context, query string, args ...any) ([]*models.Diary, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get diaries: %w", err)
	}
	defer rows.Close()

	diaries := []*models.Diary{}
	for rows.Next() {
		diary, err := scanDiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diary: %w", err)
		}
		diaries = append(diaries, diary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diaries: %w", err)
	}

	return diaries, nil
}

// Update overwrites the owner-editable fields of a diary. Likes and comments are left alone
// so a concurrent like or comment is not lost.
func (r *DiaryRepository) Update(ctx context.Context, diary *models.Diary) error {
	query := `
		UPDATE diaries
		SET title = $3, content = $4, images = $5, thumbnail = $6, state = $7,
			latitude = $8, longitude = $9, mood = $10, weather = $11, diary_date = $12, is_public = $13
		WHERE id = $1 AND owner_id = $2
	`
	result, err := r.db.Exec(ctx, query,
		diary.ID, diary.OwnerID, diary.Title, diary.Content, diary.Images, diary.Thumbnail,
		diary.Location.State, diary.Location.Coordinates.Latitude, diary.Location.Coordinates.Longitude,
		diary.Mood, diary.Weather, diary.DiaryDate, diary.IsPublic,
	)
	if err != nil {
		return fmt.Errorf("failed to update diary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("diary %s: %w", diary.ID, ErrNotFound)
	}
	return nil
}

// ReplaceImages points the diary at a new attachment list and matching thumbnail, leaving every other field alone
func (r *DiaryRepository) ReplaceImages(ctx context.Context, diaryID string, images []models.Image) error {
	query := `
		UPDATE diaries
		SET images = $2::jsonb, thumbnail = COALESCE($2::jsonb -> 0 ->> 'url', '')
		WHERE id = $1
	`
	if images == nil {
		images = []models.Image{}
	}
	result, err := r.db.Exec(ctx, query, diaryID, images)
	if err != nil {
		return fmt.Errorf("failed to replace diary images: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("diary %s: %w", diaryID, ErrNotFound)
	}
	return nil
}

// Delete deletes a diary by ID
func (r *DiaryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM diaries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete diary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("diary %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByOwner deletes every diary of an owner and returns how many were removed
func (r *DiaryRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM diaries WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete diaries of owner: %w", err)
	}
	return result.RowsAffected(), nil
}

// ToggleLike adds or removes userID from the like set in one statement and returns the new size.
// The owner can never be added.
func (r *DiaryRepository) ToggleLike(ctx context.Context, diaryID, userID string) (int, error) {
	query := `
		UPDATE diaries
		SET likes = CASE
			WHEN $2::text = ANY(likes) THEN array_remove(likes, $2::text)
			ELSE array_append(likes, $2::text)
		END
		WHERE id = $1 AND owner_id <> $2::text
		RETURNING cardinality(likes)
	`
	var count int
	err := r.db.QueryRow(ctx, query, diaryID, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("diary %s: %w", diaryID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to toggle like: %w", err)
	}
	return count, nil
}

// AppendComment adds a comment at the end of the diary's comment list
func (r *DiaryRepository) AppendComment(ctx context.Context, diaryID string, comment *models.Comment) error {
	query := `UPDATE diaries SET comments = comments || $2::jsonb WHERE id = $1`
	result, err := r.db.Exec(ctx, query, diaryID, []*models.Comment{comment})
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("diary %s: %w", diaryID, ErrNotFound)
	}
	return nil
}

// UpdateComment rewrites the content of one comment, keeping the list order.
// Only a comment written by authorID matches.
func (r *DiaryRepository) UpdateComment(ctx context.Context, diaryID, commentID, authorID, content string) error {
	query := `
		UPDATE diaries d
		SET comments = (
			SELECT jsonb_agg(
				CASE WHEN c->>'id' = $2::text THEN jsonb_set(c, '{content}', to_jsonb($4::text)) ELSE c END
				ORDER BY n
			)
			FROM jsonb_array_elements(d.comments) WITH ORDINALITY AS t(c, n)
		)
		WHERE d.id = $1
		  AND d.comments @> jsonb_build_array(jsonb_build_object('id', $2::text, 'author_id', $3::text))
	`
	result, err := r.db.Exec(ctx, query, diaryID, commentID, authorID, content)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	return nil
}

// DeleteComment removes one comment written by authorID
func (r *DiaryRepository) DeleteComment(ctx context.Context, diaryID, commentID, authorID string) error {
	query := `
		UPDATE diaries d
		SET comments = COALESCE((
			SELECT jsonb_agg(c ORDER BY n)
			FROM jsonb_array_elements(d.comments) WITH ORDINALITY AS t(c, n)
			WHERE c->>'id' <> $2::text
		), '[]'::jsonb)
		WHERE d.id = $1
		  AND d.comments @> jsonb_build_array(jsonb_build_object('id', $2::text, 'author_id', $3::text))
	`
	result, err := r.db.Exec(ctx, query, diaryID, commentID, authorID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	return nil
}

func commentsOrEmpty(comments []models.Comment) []models.Comment {
	if comments == nil {
		return []models.Comment{}
	}
	return comments
}
