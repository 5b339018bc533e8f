package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tubenote/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したメモリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// Create はメモを作成する。CreatedByが空の場合はNULLとして保存する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	createdBy := sql.NullString{String: note.CreatedBy, Valid: note.CreatedBy != ""}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notes (id, video_id, content, tags, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING created_at`,
		note.ID, note.VideoID, note.Content, pq.Array(tags), createdBy,
	).Scan(&note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// ListByVideo は動画のメモを新しい順に返す。
func (r *PostgresNoteRepo) ListByVideo(ctx context.Context, videoID string, limit int) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, video_id, content, tags, created_by, created_at
		 FROM notes
		 WHERE video_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		videoID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListByVideoAndTag は指定タグを含む動画のメモを新しい順に返す。
// タグは完全一致で比較する。
func (r *PostgresNoteRepo) ListByVideoAndTag(ctx context.Context, videoID, tag string, limit int) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, video_id, content, tags, created_by, created_at
		 FROM notes
		 WHERE video_id = $1 AND $2 = ANY(tags)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		videoID, tag, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes by tag: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]*model.Note, error) {
	var notes []*model.Note
	for rows.Next() {
		n := &model.Note{}
		var createdBy sql.NullString
		if err := rows.Scan(&n.ID, &n.VideoID, &n.Content, pq.Array(&n.Tags), &createdBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if createdBy.Valid {
			n.CreatedBy = createdBy.String
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
