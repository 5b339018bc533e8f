// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのセッションを削除し、保持日数が設定されていれば古いイベントログも削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionPurger は期限切れセッションを削除するインターフェース。
// session.Managerが実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れセッションと古いイベントログの削除ジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	db       Executor
	logger   *slog.Logger
	// EventLogRetentionDays はイベントログの保持日数。0以下なら削除しない。
	EventLogRetentionDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		db:       db,
		logger:   logger,
	}
}

// Run は期限切れセッションを削除し、続けて保持期間を超えたイベントログを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedEvents, err := j.purgeEventLogs(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int64("deleted_event_logs", deletedEvents),
		slog.Int("retention_days", j.EventLogRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) purgeEventLogs(ctx context.Context) (int64, error) {
	if j.EventLogRetentionDays <= 0 || j.db == nil {
		return 0, nil
	}

	interval := fmt.Sprintf("%d days", j.EventLogRetentionDays)
	query := `DELETE FROM event_logs WHERE occurred_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("イベントログクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EventLogRetentionDays),
		)
		return 0, fmt.Errorf("イベントログクリーンアップの実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。ctxのキャンセルで戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
