package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/simple-video-pipeline/internal/database"
)

// SQLStore stores records in the video_metadata table
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLStore wraps a migrated database
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// UpsertVideoMetadata inserts or merges only the columns set in f
func (s *SQLStore) UpsertVideoMetadata(ctx context.Context, videoID string, f Fields) error {
	cols := []string{"video_id"}
	args := []any{videoID}

	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if f.IsProcessed != nil {
		add("is_processed", *f.IsProcessed)
	}
	if f.ActiveThumbnail != nil {
		add("active_thumbnail", *f.ActiveThumbnail)
	}
	if f.DerivativeURLs != nil {
		raw, err := json.Marshal(f.DerivativeURLs)
		if err != nil {
			return fmt.Errorf("failed to encode derivative urls: %w", err)
		}
		add("derivative_urls", string(raw))
	}
	if f.PreviewURL != nil {
		add("preview_url", *f.PreviewURL)
	}
	if f.SpriteSheetURL != nil {
		add("sprite_sheet_url", *f.SpriteSheetURL)
	}
	if f.SpriteWidth != nil {
		add("sprite_width", *f.SpriteWidth)
	}
	if f.SpriteHeight != nil {
		add("sprite_height", *f.SpriteHeight)
	}

	placeholders := make([]string, len(cols))
	sets := make([]string, 0, len(cols))
	for i, col := range cols {
		placeholders[i] = s.dialect.Placeholder(i + 1)
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf(`
		INSERT INTO video_metadata (%s, updated_at)
		VALUES (%s, CURRENT_TIMESTAMP)
		ON CONFLICT (video_id) DO UPDATE
		SET %s
	`, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert video metadata: %w", err)
	}
	return nil
}

// GetVideoMetadata loads the record for videoID
func (s *SQLStore) GetVideoMetadata(ctx context.Context, videoID string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT video_id, is_processed, active_thumbnail, derivative_urls, preview_url,
		       sprite_sheet_url, sprite_width, sprite_height, updated_at
		FROM video_metadata
		WHERE video_id = %s
	`, s.dialect.Placeholder(1))

	var (
		r         Record
		processed sql.NullBool
		active    sql.NullInt64
		urls      sql.NullString
		preview   sql.NullString
		sprite    sql.NullString
		width     sql.NullInt64
		height    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, videoID).Scan(
		&r.VideoID, &processed, &active, &urls, &preview,
		&sprite, &width, &height, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video metadata: %w", err)
	}

	r.IsProcessed = processed.Bool
	r.ActiveThumbnail = int(active.Int64)
	r.PreviewURL = preview.String
	r.SpriteSheetURL = sprite.String
	r.SpriteWidth = int(width.Int64)
	r.SpriteHeight = int(height.Int64)
	if urls.Valid && urls.String != "" {
		if err := json.Unmarshal([]byte(urls.String), &r.DerivativeURLs); err != nil {
			return nil, fmt.Errorf("failed to decode derivative urls: %w", err)
		}
	}
	return &r, nil
}
