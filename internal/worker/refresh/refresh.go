// Package refresh はキャッシュのバックグラウンド再読み込みジョブを提供する。
// 外部のユーザーストアが管理API以外から変更された場合のドリフトを
// 定期的に取り込む。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Loader はキャッシュ再読み込みの実行インターフェース。
// mutation.Coordinatorが実装する。
type Loader interface {
	// Load はストアの全ユーザーを取得してキャッシュを置き換える。
	Load(ctx context.Context) error
}

// Refresher はキャッシュ再読み込みのスケジューリングを行う。
type Refresher struct {
	loader Loader
	logger *slog.Logger
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
func NewRefresher(loader Loader, logger *slog.Logger) *Refresher {
	return &Refresher{
		loader: loader,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでリフレッシャーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// 起動直後の初回ロードは呼び出し側の責務とする（起動シーケンスで
// ロード完了を待ってからサーバーを公開するため）。
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("キャッシュリフレッシャーを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("キャッシュリフレッシャーを停止しました")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("キャッシュ再読み込みに失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はキャッシュ再読み込みを1回実行する。
// ストア障害時はキャッシュを変更せずエラーを返す。
func (r *Refresher) RunOnce(ctx context.Context) error {
	start := time.Now()

	if err := r.loader.Load(ctx); err != nil {
		return err
	}

	duration := time.Since(start)
	r.logger.Info("キャッシュを再読み込みしました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
