// Package mutation はリモートストアに対するcreate/update/deleteを、
// エンティティキャッシュの楽観的一貫性を保ちながら実行する
// ミューテーションコーディネーターを提供する。
//
// 各操作は呼び出し時点のキャッシュリストを同期的にキャプチャし、
// 楽観的変更を適用してからリモート呼び出しを行う。失敗時は
// 自身がキャプチャしたリストへ正確に復元する。複数のミューテーションが
// 同時に実行中の場合、後続操作のキャプチャには先行操作の楽観的変更が
// 含まれうる。後続のロールバックが先行の変更を巻き戻すことはない。
// これは設計上の既知の制限であり、各操作は「自身がキャプチャした
// リストを復元する」以上の順序保証を持たない。
package mutation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/userdesk/internal/cache"
	"github.com/hitoshi/userdesk/internal/model"
)

// StoreClient はコーディネーターが必要とするリモートストア操作のインターフェース。
// store.Clientの部分集合として定義する。
type StoreClient interface {
	List(ctx context.Context) ([]model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, draft model.User) (*model.User, error)
	Update(ctx context.Context, id int64, user model.User) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

// MetricsRecorder はミューテーション結果の記録インターフェース。
type MetricsRecorder interface {
	RecordMutationSuccess(op string)
	RecordMutationFailure(op string)
	RecordRollback(op string)
	RecordUndo()
	RecordRemoteLatency(op string, duration time.Duration)
}

// pendingDeletion は直近の削除を1件だけ記録するアンドゥバッファの内容。
type pendingDeletion struct {
	user  model.User
	index int
}

// Coordinator はミューテーションコーディネーターの実装。
type Coordinator struct {
	cache   *cache.Cache
	store   StoreClient
	metrics MetricsRecorder
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   *pendingDeletion
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
func NewCoordinator(c *cache.Cache, store StoreClient, metrics MetricsRecorder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cache:   c,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Load はリモートストアから全レコードを取得してキャッシュを初期化する。
// 取得中はローディングフラグを立てる。
func (c *Coordinator) Load(ctx context.Context) error {
	c.cache.SetLoading(true)
	defer c.cache.SetLoading(false)

	start := time.Now()
	users, err := c.store.List(ctx)
	c.metrics.RecordRemoteLatency("load", time.Since(start))
	if err != nil {
		c.metrics.RecordMutationFailure("load")
		c.logger.Error("ユーザー一覧の初期ロードに失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	c.cache.Replace(users)
	c.metrics.RecordMutationSuccess("load")
	c.logger.Info("ユーザー一覧をロードしました",
		slog.Int("count", len(users)),
	)
	return nil
}

// GetUser は指定IDのレコードを返す。
// キャッシュを優先し、存在しない場合のみリモートストアへフォールバックする。
// どちらにも存在しない場合はUSER_NOT_FOUNDを返す。
func (c *Coordinator) GetUser(ctx context.Context, id int64) (*model.User, error) {
	for _, u := range c.cache.Snapshot() {
		if u.ID == id {
			found := u
			return &found, nil
		}
	}

	user, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Create はIDなしのペイロードからレコードを作成する。
// IDは確認応答まで不明なため、楽観的適用フェーズは持たない。
// 成功時はストアが採番したレコードをキャッシュ末尾に追加して返す。
// 失敗時はキャッシュを変更しない。実行中はローディングフラグを立てる。
func (c *Coordinator) Create(ctx context.Context, draft model.User) (*model.User, error) {
	c.cache.SetLoading(true)
	defer c.cache.SetLoading(false)

	start := time.Now()
	created, err := c.store.Create(ctx, draft)
	c.metrics.RecordRemoteLatency("create", time.Since(start))
	if err != nil {
		c.metrics.RecordMutationFailure("create")
		c.logger.Error("ユーザーの作成に失敗しました",
			slog.String("username", draft.Username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	current := c.cache.Snapshot()
	c.cache.Replace(append(current, *created))

	c.metrics.RecordMutationSuccess("create")
	c.logger.Info("ユーザーを作成しました",
		slog.Int64("user_id", created.ID),
		slog.String("username", created.Username),
	)
	return created, nil
}

// Update は既存レコードへパッチをシャローマージし、楽観的に適用してから
// リモートストアへ送信する。
// 対象IDがキャッシュに存在しない場合はリモート呼び出しを行わず
// USER_NOT_FOUNDで即座に失敗する。
// 成功時は完了時点のキャッシュ内で対象IDを再検索し、ストアが返した表現で
// 置き換える（他のミューテーションの結果を上書きしないため、キャプチャした
// リストではなく現在のリストを使う）。
// 失敗時はキャプチャしたリストへ完全にロールバックする。
func (c *Coordinator) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	original := c.cache.Snapshot()

	index := indexOf(original, id)
	if index < 0 {
		c.metrics.RecordMutationFailure("update")
		return nil, model.NewUserNotFoundError(id)
	}

	merged := patch.Apply(original[index])

	// 楽観的適用: リモート応答を待たずにマージ結果を反映する
	optimistic := make([]model.User, len(original))
	copy(optimistic, original)
	optimistic[index] = merged
	c.cache.Replace(optimistic)

	start := time.Now()
	stored, err := c.store.Update(ctx, id, merged)
	c.metrics.RecordRemoteLatency("update", time.Since(start))
	if err != nil {
		// キャプチャしたリストへ完全復元
		c.cache.Replace(original)
		c.metrics.RecordRollback("update")
		c.metrics.RecordMutationFailure("update")
		c.logger.Error("ユーザーの更新に失敗しました。変更をロールバックします",
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// リコンサイル: 完了時点の現在リストで対象を置き換える
	current := c.cache.Snapshot()
	if i := indexOf(current, id); i >= 0 {
		current[i] = *stored
		c.cache.Replace(current)
	}

	c.metrics.RecordMutationSuccess("update")
	c.logger.Info("ユーザーを更新しました",
		slog.Int64("user_id", id),
	)
	return stored, nil
}

// Delete は対象レコードを楽観的にキャッシュから除去してから
// リモートストアへ削除を送信する。
// 削除時点のレコードと位置はアンドゥバッファに記録され、
// 直前の保留削除があれば上書きされる（アンドゥ可能なのは最新の削除のみ）。
// 失敗時は削除前のリストへ復元し、アンドゥバッファをクリアする
// （実際には起きなかった削除のアンドゥは提供しない）。
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	original := c.cache.Snapshot()

	index := indexOf(original, id)
	if index < 0 {
		c.metrics.RecordMutationFailure("delete")
		return model.NewUserNotFoundError(id)
	}

	c.pendingMu.Lock()
	c.pending = &pendingDeletion{user: original[index], index: index}
	c.pendingMu.Unlock()

	// 楽観的除去
	optimistic := make([]model.User, 0, len(original)-1)
	optimistic = append(optimistic, original[:index]...)
	optimistic = append(optimistic, original[index+1:]...)
	c.cache.Replace(optimistic)

	start := time.Now()
	err := c.store.Delete(ctx, id)
	c.metrics.RecordRemoteLatency("delete", time.Since(start))
	if err != nil {
		c.cache.Replace(original)
		c.clearPending()
		c.metrics.RecordRollback("delete")
		c.metrics.RecordMutationFailure("delete")
		c.logger.Error("ユーザーの削除に失敗しました。レコードを復元します",
			slog.Int64("user_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.metrics.RecordMutationSuccess("delete")
	c.logger.Info("ユーザーを削除しました",
		slog.Int64("user_id", id),
		slog.Int("index", index),
	)
	return nil
}

// UndoDelete は直近の削除を1回だけ取り消す。
// バッファが空の場合は「取り消す削除がない」ことを示すfalseを返す（エラーではない）。
// 復元はキャプチャ済みレコードを新規作成として再発行するため、
// 復元後のレコードはストアが採番した新しいIDを持ち、位置はキャッシュ末尾となる。
// 再作成が失敗してもバッファは空のままで、2回目のアンドゥは提供されない。
func (c *Coordinator) UndoDelete(ctx context.Context) (*model.User, bool, error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	if pending == nil {
		return nil, false, nil
	}

	c.metrics.RecordUndo()
	c.logger.Info("削除を取り消します",
		slog.Int64("original_user_id", pending.user.ID),
		slog.Int("original_index", pending.index),
	)

	restored, err := c.Create(ctx, pending.user)
	if err != nil {
		return nil, true, err
	}
	return restored, true, nil
}

// HasPendingDeletion はアンドゥバッファにレコードが保持されているかを返す。
// UI側の「元に戻す」表示制御およびテスト用。
func (c *Coordinator) HasPendingDeletion() bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.pending != nil
}

// clearPending はアンドゥバッファを破棄する。
func (c *Coordinator) clearPending() {
	c.pendingMu.Lock()
	c.pending = nil
	c.pendingMu.Unlock()
}

// indexOf は指定IDのレコードの位置を返す。存在しない場合は-1。
func indexOf(users []model.User, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
