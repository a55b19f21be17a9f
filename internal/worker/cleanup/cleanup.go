// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// インメモリのセッションストアはFindByID時の遅延削除も行うが、
// 参照されなくなったセッションはこのジョブで回収する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッション削除のインターフェース。
// auth.SessionStoreの部分集合として定義する。
type SessionPurger interface {
	// DeleteExpired は期限切れセッションをすべて削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int, error)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
	}
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("セッションクリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れセッションを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.logger.Info("期限切れセッションを削除しました",
			slog.Int("deleted_count", deleted),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}
