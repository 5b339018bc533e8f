// Package eventlog は監査用イベントログの追記を提供する。
package eventlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/tubenote/internal/metrics"
	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/repository"
)

// Recorder はイベントログを記録する。
// 記録の失敗は呼び出し元の処理を失敗させない。
type Recorder struct {
	repo    repository.EventRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewRecorder はRecorderを生成する。
func NewRecorder(repo repository.EventRepository, mc metrics.MetricsCollector) *Recorder {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Recorder{repo: repo, metrics: mc, now: time.Now}
}

// Record はイベントを1件追記する。
func (r *Recorder) Record(ctx context.Context, eventType model.EventType, details map[string]any) {
	ev := &model.EventLog{
		EventType:  eventType,
		OccurredAt: r.now(),
		Details:    details,
	}

	if err := r.repo.Append(ctx, ev); err != nil {
		slog.Error("failed to record event",
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.metrics.RecordEvent(string(eventType))
}

// RecordError は失敗イベントを、detailsにerrorを加えて記録する。
func (r *Recorder) RecordError(ctx context.Context, eventType model.EventType, details map[string]any, cause error) {
	merged := make(map[string]any, len(details)+1)
	for k, v := range details {
		merged[k] = v
	}
	if cause != nil {
		merged["error"] = cause.Error()
	}
	r.Record(ctx, eventType, merged)
}
