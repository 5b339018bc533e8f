package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/tubenote/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントログリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// Append はイベントログを1件追記する。OccurredAtが未設定の場合はDB側の現在時刻を使う。
func (r *PostgresEventRepo) Append(ctx context.Context, event *model.EventLog) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode event details: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO event_logs (event_type, occurred_at, details)
		 VALUES ($1, COALESCE($2, now()), $3)
		 RETURNING id, occurred_at`,
		string(event.EventType), nullTime(event.OccurredAt), raw,
	).Scan(&event.ID, &event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append event log: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
