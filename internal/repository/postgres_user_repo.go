package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/tubenote/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, google_id, name, email,
		        access_token, refresh_token, token_type, token_expiry, id_token,
		        created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.GoogleID, &user.Name, &user.Email,
		&user.Tokens.AccessToken, &user.Tokens.RefreshToken, &user.Tokens.TokenType, &expiry, &user.Tokens.IDToken,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	if expiry.Valid {
		user.Tokens.Expiry = expiry.Time
	}

	return user, nil
}

// UpsertByGoogleID はgoogle_idをキーにユーザーを作成または更新する。
func (r *PostgresUserRepo) UpsertByGoogleID(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, google_id, name, email,
		                    access_token, refresh_token, token_type, token_expiry, id_token,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (google_id) DO UPDATE SET
		     name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     access_token = EXCLUDED.access_token,
		     refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), users.refresh_token),
		     token_type = EXCLUDED.token_type,
		     token_expiry = EXCLUDED.token_expiry,
		     id_token = COALESCE(NULLIF(EXCLUDED.id_token, ''), users.id_token),
		     updated_at = now()
		 RETURNING id, refresh_token, id_token, created_at, updated_at`,
		user.ID, user.GoogleID, user.Name, user.Email,
		user.Tokens.AccessToken, user.Tokens.RefreshToken, user.Tokens.TokenType,
		nullTime(user.Tokens.Expiry), user.Tokens.IDToken,
	).Scan(&user.ID, &user.Tokens.RefreshToken, &user.Tokens.IDToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpdateTokens はユーザーのトークン一式を更新する。
func (r *PostgresUserRepo) UpdateTokens(ctx context.Context, userID string, tokens model.TokenSet) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		     access_token = $1,
		     refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
		     token_type = $3,
		     token_expiry = $4,
		     id_token = COALESCE(NULLIF($5, ''), id_token),
		     updated_at = now()
		 WHERE id = $6`,
		tokens.AccessToken, tokens.RefreshToken, tokens.TokenType,
		nullTime(tokens.Expiry), tokens.IDToken, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// nullTime はゼロ値をNULLとして扱うsql.NullTimeを返す。
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
