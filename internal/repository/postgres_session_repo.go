package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/tubenote/internal/model"
)

// sessionData はsessions.dataカラム（JSONB）の内容。
type sessionData struct {
	Tokens *model.TokenSet `json:"tokens,omitempty"`
}

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。作成後のVersionは1になる。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	data, err := encodeSessionData(session)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (id, user_id, data, version, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, now(), now())
		 RETURNING version, created_at, updated_at`,
		session.ID, session.UserID(), data, session.ExpiresAt,
	).Scan(&session.Version, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var userID string
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, data, version, expires_at, created_at, updated_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &userID, &raw, &session.Version, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var data sessionData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode session data: %w", err)
		}
	}
	if data.Tokens != nil {
		session.Attach(*data.Tokens, userID)
	}

	return session, nil
}

// Update はセッションのTokenSetを保存し、Versionを1つ進める。
// 読み込み後に他のリクエストが更新していた場合はErrVersionConflictを返す。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.Session) error {
	data, err := encodeSessionData(session)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx,
		`UPDATE sessions
		 SET data = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3
		 RETURNING version, updated_at`,
		data, session.ID, session.Version,
	).Scan(&session.Version, &session.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func encodeSessionData(session *model.Session) ([]byte, error) {
	var data sessionData
	if tokens, ok := session.Current(); ok {
		data.Tokens = &tokens
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
