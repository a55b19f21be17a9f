// Package cache はユーザーレコードのインメモリ・エンティティキャッシュを提供する。
// キャッシュはシステム内で唯一の参照元（single source of truth）であり、
// 楽観的適用・リコンサイル・ロールバックのすべての状態遷移は
// Replaceを通じて適用される。
package cache

import (
	"sort"
	"sync"

	"github.com/hitoshi/userdesk/internal/model"
)

// Subscriber はキャッシュの状態遷移ごとに呼び出されるコールバック。
// 購読時点の最新スナップショットが即座に1回配信され、以降は
// 適用順にすべての遷移が配信される。
//
// コールバックはキャッシュのロックを保持したまま呼び出されるため、
// 次の遷移はすべての購読者への配信が完了するまで開始されない
// （購読者ごとの逐次一貫性）。コールバック内からキャッシュの
// メソッドを呼び出してはならない。
type Subscriber func(users []model.User)

// Cache はユーザーレコードの権威あるインメモリリストとローディングフラグを保持する。
// 並行アクセスに対して安全であり、スナップショットは常にコピーを返す。
type Cache struct {
	mu      sync.Mutex
	users   []model.User
	loading bool

	subs      map[int]Subscriber
	nextSubID int
}

// New は空のCacheを生成する。
func New() *Cache {
	return &Cache{
		subs: make(map[int]Subscriber),
	}
}

// Snapshot は現在のレコードリストのコピーを返す。副作用はない。
// 返されたスライスは呼び出し元が自由に変更してよい。
func (c *Cache) Snapshot() []model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUsers(c.users)
}

// Replace はレコードリスト全体をアトミックに置き換え、
// すべての購読者に新しいスナップショットを適用順で配信する。
// 初期ロード、リコンサイル、ロールバックで使用する。
func (c *Cache) Replace(users []model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.users = copyUsers(users)
	c.notifyLocked()
}

// SetLoading はローディングフラグを設定する。
func (c *Cache) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = loading
}

// Loading は現在のローディングフラグを返す。
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Len は現在のレコード数を返す。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}

// Subscribe は購読者を登録し、購読解除用の関数を返す。
// 登録時点の最新スナップショットが登録中に同期的に配信される。
func (c *Cache) Subscribe(fn Subscriber) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn

	// 購読直後に最新状態を配信する
	fn(copyUsers(c.users))
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// SubscriberCount は現在の購読者数を返す。テストおよびメトリクス用。
func (c *Cache) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// notifyLocked は全購読者に現在のスナップショットを配信する。
// 呼び出し元がmuを保持していることを前提とする。
// 配信順は購読登録順で安定させる。
func (c *Cache) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}

	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	snapshot := copyUsers(c.users)
	for _, id := range ids {
		c.subs[id](snapshot)
	}
}

// copyUsers はレコードリストの独立したコピーを返す。
// model.Userは値型フィールドのみで構成されるため、スライスのコピーで十分。
func copyUsers(users []model.User) []model.User {
	out := make([]model.User, len(users))
	copy(out, users)
	return out
}
